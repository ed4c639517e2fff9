package heapdump

import (
	"bufio"
	"context"
	"io"
	"unicode"

	"github.com/heap-dump/internal/report"
	"github.com/heap-dump/internal/storage"
	"github.com/heap-dump/internal/walker"
	"github.com/heap-dump/pkg/compression"
	"github.com/heap-dump/pkg/model"

	apperrors "github.com/heap-dump/pkg/errors"
)

// ReadReport decodes a stored report. Compression and format are detected
// from the content.
func ReadReport(r io.Reader) (*model.DumpResult, error) {
	dr, err := compression.NewReader(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSerialize, "open report", err)
	}
	defer dr.Close()

	br := bufio.NewReader(dr)
	first, err := firstNonSpace(br)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSerialize, "read report", err)
	}

	var doc report.Document
	if first == '{' {
		doc, err = report.DecodeJSON(br)
	} else {
		doc, err = report.DecodeXML(br)
	}
	if err != nil {
		return nil, err
	}
	return ResultOf(doc), nil
}

// LoadReport downloads and decodes the report stored at key.
func LoadReport(ctx context.Context, store storage.Storage, key string) (*model.DumpResult, error) {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadReport(rc)
}

// ResultOf rebuilds result statistics from a decoded document. Counters
// that only the traversal knows, such as warnings, stay zero.
func ResultOf(doc report.Document) *model.DumpResult {
	res := &model.DumpResult{
		ID:        doc.ID,
		Scene:     doc.Scene,
		Strategy:  model.Strategy(doc.Strategy),
		CreatedAt: doc.Created,
		Root:      doc.Root,
	}
	if doc.Root == nil {
		return res
	}

	s := report.Collect(doc.Root)
	res.Stats = model.DumpStats{
		TotalSize: doc.Root.Size,
		Nodes:     s.Nodes,
		CycleRefs: s.CycleRefs,
	}
	if g := doc.Root.Find(walker.GroupStatics); g != nil {
		res.Stats.StaticsSize = g.Size
		for _, c := range g.Children {
			if c.Kind != model.KindStaticType {
				continue
			}
			if len(c.Children) == 1 && c.Children[0].Kind == model.KindIgnored {
				res.Stats.Ignored++
			} else {
				res.Stats.StaticTypes++
			}
		}
	}
	if g := doc.Root.Find(walker.GroupScene); g != nil {
		res.Stats.SceneSize = g.Size
	}
	doc.Root.Walk(func(n *model.ReportNode, _ int) bool {
		if n.Kind == model.KindContainer {
			res.Stats.Containers++
		}
		return true
	})
	return res
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
