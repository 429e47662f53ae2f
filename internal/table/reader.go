package table

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/storage"
)

// Reader loads committed tables back from storage.
type Reader struct {
	store storage.Store
}

func NewReader(store storage.Store) *Reader {
	return &Reader{store: store}
}

// Read returns every row of t, restoring partition columns from the
// directory layout. A table without its commit marker is refused with
// ErrTableNotCommitted, which is what orders a read after the write
// that produced it.
func (r *Reader) Read(ctx context.Context, t Table) (*frame.Frame, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	keys, err := r.store.List(ctx, t.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTableRead, t.Name, err)
	}

	marker := storage.Join(t.Name, SuccessMarker)
	committed := false
	var dataKeys []string
	for _, k := range keys {
		if k == marker {
			committed = true
			continue
		}
		base := path.Base(k)
		if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileSuffix) {
			continue
		}
		dataKeys = append(dataKeys, k)
	}
	if !committed {
		return nil, fmt.Errorf("%w: %s/%s", ErrTableNotCommitted, r.store.URI(), t.Name)
	}

	pcols := t.partitionColumns()
	fileSchema := t.FileSchema()
	pos := make([]int, 0, t.Schema.Len())
	for _, c := range fileSchema.Columns() {
		i, _ := t.Schema.Index(c.Name)
		pos = append(pos, i)
	}
	ppos := make([]int, len(pcols))
	for i, c := range pcols {
		ppos[i], _ = t.Schema.Index(c.Name)
	}

	var rows []frame.Row
	for _, k := range dataKeys {
		rel := strings.TrimPrefix(k, t.Name+"/")
		pvals, err := parsePartitionPath(pcols, rel)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTableRead, err)
		}
		data, err := r.store.Read(ctx, k)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s vanished during read", ErrTableRead, k)
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrTableRead, k, err)
		}
		fileRows, err := decodeParquet(data, fileSchema)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTableRead, k, err)
		}
		for _, fr := range fileRows {
			row := make(frame.Row, t.Schema.Len())
			for i, j := range pos {
				row[j] = fr[i]
			}
			for i, j := range ppos {
				row[j] = pvals[i]
			}
			rows = append(rows, row)
		}
	}

	f, err := frame.New(t.Schema, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTableRead, t.Name, err)
	}
	return f, nil
}
