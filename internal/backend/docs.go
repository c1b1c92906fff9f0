package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
)

// IDField is the JSON member holding a document's id.
const IDField = "id"

// maxLine bounds a single JSON line.
const maxLine = 4 << 20

// ReadDocuments reads newline-delimited JSON objects. Every string member
// other than "id" becomes a field. Lines without an id are numbered by
// position; blank lines are skipped.
func ReadDocuments(r io.Reader, name string) ([]Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var docs []Document
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		if !gjson.ValidBytes(raw) {
			return nil, synerrors.ValidationError("invalid JSON document", nil).
				WithDetail("source", name).
				WithDetail("line", strconv.Itoa(line))
		}
		v := gjson.ParseBytes(raw)
		if !v.IsObject() {
			return nil, synerrors.ValidationError("document is not a JSON object", nil).
				WithDetail("source", name).
				WithDetail("line", strconv.Itoa(line))
		}

		d := Document{ID: v.Get(IDField).String(), Fields: make(map[string]string)}
		if d.ID == "" {
			d.ID = fmt.Sprintf("%s:%d", name, line)
		}
		v.ForEach(func(k, val gjson.Result) bool {
			if k.String() != IDField && val.Type == gjson.String {
				d.Fields[k.String()] = val.String()
			}
			return true
		})
		docs = append(docs, d)
	}
	if err := sc.Err(); err != nil {
		return nil, synerrors.IOError("failed to read documents", err).WithDetail("source", name)
	}
	return docs, nil
}

// LoadFiles reads the given JSONL files concurrently and indexes them.
// It returns the number of documents added.
func (x *Index) LoadFiles(ctx context.Context, paths ...string) (int, error) {
	results := make([][]Document, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			f, err := os.Open(p)
			if err != nil {
				if os.IsNotExist(err) {
					return synerrors.IOError("document file not found", err).WithDetail("path", p)
				}
				return synerrors.New(synerrors.ErrCodeFilePermission, "cannot open document file", err).
					WithDetail("path", p)
			}
			defer f.Close()

			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := ReadDocuments(f, p)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var all []Document
	for _, docs := range results {
		all = append(all, docs...)
	}
	if err := x.Add(ctx, all); err != nil {
		return 0, err
	}
	return len(all), nil
}
