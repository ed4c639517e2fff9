package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/heap-dump/pkg/model"
	"github.com/heap-dump/pkg/writer"

	apperrors "github.com/heap-dump/pkg/errors"
)

// Meta describes the dump a tree belongs to.
type Meta struct {
	ID       string    `json:"id"`
	Scene    string    `json:"scene"`
	Strategy string    `json:"strategy"`
	Created  time.Time `json:"created"`
}

// Document is the serialized form of a dump.
type Document struct {
	Meta
	Root *model.ReportNode `json:"root"`
}

// xmlNode is the markup form of a report node: the element name is the
// node kind.
type xmlNode struct {
	XMLName     xml.Name
	ID          string    `xml:"id,attr,omitempty"`
	Scene       string    `xml:"scene,attr,omitempty"`
	Strategy    string    `xml:"strategy,attr,omitempty"`
	Created     string    `xml:"created,attr,omitempty"`
	Name        string    `xml:"name,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	RuntimeType string    `xml:"runtimetype,attr,omitempty"`
	Size        int64     `xml:"totalsize,attr"`
	Overhead    int64     `xml:"overhead,attr,omitempty"`
	Length      string    `xml:"length,attr,omitempty"`
	Rank        int       `xml:"rank,attr,omitempty"`
	Value       string    `xml:"value,attr,omitempty"`
	Reason      string    `xml:"reason,attr,omitempty"`
	Children    []xmlNode `xml:",any"`
}

func toXML(n *model.ReportNode) xmlNode {
	x := xmlNode{
		XMLName:     xml.Name{Local: string(n.Kind)},
		Name:        n.Name,
		Type:        n.Type,
		RuntimeType: n.RuntimeType,
		Size:        n.Size,
		Overhead:    n.Overhead,
		Rank:        n.Rank,
		Value:       n.Value,
		Reason:      n.Reason,
	}
	if n.Kind == model.KindArray || n.Kind == model.KindMap || n.Kind == model.KindString {
		x.Length = strconv.FormatInt(n.Length, 10)
	}
	if len(n.Children) > 0 {
		x.Children = make([]xmlNode, len(n.Children))
		for i, c := range n.Children {
			x.Children[i] = toXML(c)
		}
	}
	return x
}

func fromXML(x xmlNode) (*model.ReportNode, error) {
	n := &model.ReportNode{
		Kind:        model.NodeKind(x.XMLName.Local),
		Name:        x.Name,
		Type:        x.Type,
		RuntimeType: x.RuntimeType,
		Size:        x.Size,
		Overhead:    x.Overhead,
		Rank:        x.Rank,
		Value:       x.Value,
		Reason:      x.Reason,
	}
	if x.Length != "" {
		l, err := strconv.ParseInt(x.Length, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("node %q: bad length %q: %w", n.Label(), x.Length, err)
		}
		n.Length = l
	}
	for _, cx := range x.Children {
		c, err := fromXML(cx)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

// EncodeXML writes the tree as an indented XML document.
func EncodeXML(w io.Writer, doc Document) error {
	if doc.Root == nil {
		return apperrors.New(apperrors.CodeSerialize, "empty report")
	}
	x := toXML(doc.Root)
	x.ID = doc.ID
	x.Scene = doc.Scene
	x.Strategy = doc.Strategy
	if !doc.Created.IsZero() {
		x.Created = doc.Created.UTC().Format(time.RFC3339)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return apperrors.Wrap(apperrors.CodeSerialize, "write header", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(x); err != nil {
		return apperrors.Wrap(apperrors.CodeSerialize, "encode xml", err)
	}
	if err := enc.Flush(); err != nil {
		return apperrors.Wrap(apperrors.CodeSerialize, "flush xml", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// DecodeXML reads a document written by EncodeXML. Cycle references come
// back without their targets.
func DecodeXML(r io.Reader) (Document, error) {
	var x xmlNode
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeSerialize, "decode xml", err)
	}
	root, err := fromXML(x)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeSerialize, "decode xml", err)
	}

	doc := Document{
		Meta: Meta{ID: x.ID, Scene: x.Scene, Strategy: x.Strategy},
		Root: root,
	}
	if x.Created != "" {
		if doc.Created, err = time.Parse(time.RFC3339, x.Created); err != nil {
			return Document{}, apperrors.Wrap(apperrors.CodeSerialize, "decode created", err)
		}
	}
	return doc, nil
}

// EncodeJSON writes the document as indented JSON.
func EncodeJSON(w io.Writer, doc Document) error {
	if err := writer.NewPrettyJSONWriter[Document]().Write(doc, w); err != nil {
		return apperrors.Wrap(apperrors.CodeSerialize, "encode json", err)
	}
	return nil
}

// DecodeJSON reads a document written by EncodeJSON.
func DecodeJSON(r io.Reader) (Document, error) {
	doc, err := writer.NewJSONReader[Document]().Read(r)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeSerialize, "decode json", err)
	}
	return doc, nil
}
