// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/pdiddy/publishing-profiler/pkg/types"
)

const parquetBatchSize = 1 << 14

// LoadParquet reads a merged table stored as parquet. Every column is read
// as text; nulls are kept as absent values.
func LoadParquet(ctx context.Context, path string) (types.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Dataset{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return types.Dataset{}, fmt.Errorf("reading parquet footer %s: %w", path, err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: parquetBatchSize}, memory.DefaultAllocator)
	if err != nil {
		return types.Dataset{}, fmt.Errorf("opening parquet reader %s: %w", path, err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return types.Dataset{}, fmt.Errorf("reading parquet table %s: %w", path, err)
	}
	defer tbl.Release()

	numRows := int(tbl.NumRows())
	numCols := int(tbl.NumCols())

	header := make([]string, numCols)
	rows := make([][]string, numRows)
	null := make([][]bool, numRows)
	for i := range rows {
		rows[i] = make([]string, numCols)
		null[i] = make([]bool, numCols)
	}

	for c := 0; c < numCols; c++ {
		header[c] = tbl.Schema().Field(c).Name
		row := 0
		for _, chunk := range tbl.Column(c).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				if chunk.IsNull(i) {
					null[row][c] = true
				} else {
					rows[row][c] = chunk.ValueStr(i)
				}
				row++
			}
		}
	}

	ds, err := FromRows(header, rows, null)
	if err != nil {
		return types.Dataset{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return ds, nil
}
