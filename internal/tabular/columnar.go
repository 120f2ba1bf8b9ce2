package tabular

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"path"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"earapi/internal/apperr"
	"earapi/internal/logging"
	"earapi/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// openColumnar decodes the whole parquet file up front, then hands the table out
// in ChunkRows batches rather than as one batch, so the paginator can stop early.
func (o *Opener) openColumnar(ctx context.Context, url string) (Reader, error) {
	logger := logging.FromContext(ctx).With("url", url)

	tbl, err := o.streamTable(ctx, url)
	if err != nil {
		logger.Warn("streaming parquet decode failed, downloading whole file", "error", err)
		o.metrics.ReaderFallback("download")

		data, err := o.loadColumnar(ctx, url)
		if err != nil {
			return nil, err
		}
		tbl, err = readTable(ctx, bytes.NewReader(data))
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrDecode, "decode parquet "+url, err)
		}
	}
	logger.Debug("parquet resource decoded", "rows", tbl.NumRows(), "columns", tbl.NumCols())
	return newColumnarReader(tbl, o.cfg.DateColumn, o.cfg.ChunkRows), nil
}

// streamTable decodes the file through HTTP range requests, reading only the
// footer and the column chunks.
func (o *Opener) streamTable(ctx context.Context, url string) (arrow.Table, error) {
	rr, err := o.fetcher.NewRangeReader(ctx, url)
	if err != nil {
		return nil, err
	}
	return readTable(ctx, rr)
}

// loadColumnar returns the full file, served from the mirror when it holds a copy.
func (o *Opener) loadColumnar(ctx context.Context, url string) ([]byte, error) {
	if o.mirror == nil {
		return o.fetcher.Download(ctx, url)
	}

	logger := logging.FromContext(ctx).With("url", url)
	key := o.mirrorKey(url)

	rc, _, err := o.mirror.Get(ctx, key)
	switch {
	case err == nil:
		data, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr == nil {
			logger.Info("parquet resource served from mirror", "key", key)
			return data, nil
		}
		logger.Warn("mirror read failed", "key", key, "error", readErr)
	case errors.Is(err, storage.ErrObjectNotFound):
	default:
		logger.Warn("mirror lookup failed", "key", key, "error", err)
	}

	data, err := o.fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	if _, err := o.mirror.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: parquetContentType,
		Metadata:    map[string]string{"source-url": url},
	}); err != nil {
		logger.Warn("mirror upload failed", "key", key, "error", err)
	}
	return data, nil
}

func (o *Opener) mirrorKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return path.Join(o.prefix, hex.EncodeToString(sum[:])+".parquet")
}

func readTable(ctx context.Context, r parquet.ReaderAtSeeker) (arrow.Table, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, err
	}
	return fr.ReadTable(ctx)
}

type columnarReader struct {
	tbl     arrow.Table
	tr      *array.TableReader
	schema  *Schema
	dateIdx int
}

func newColumnarReader(tbl arrow.Table, dateColumn string, chunkRows int) *columnarReader {
	fields := tbl.Schema().Fields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	schema := NewSchema(cols)
	dateIdx, ok := schema.Index(dateColumn)
	if !ok {
		dateIdx = -1
	}
	return &columnarReader{
		tbl:     tbl,
		tr:      array.NewTableReader(tbl, int64(chunkRows)),
		schema:  schema,
		dateIdx: dateIdx,
	}
}

func (r *columnarReader) Schema() *Schema { return r.schema }

func (r *columnarReader) Next() (Batch, error) {
	if r.tr == nil || !r.tr.Next() {
		if r.tr != nil && r.tr.Err() != nil {
			return nil, apperr.Wrap(apperr.ErrDecode, "read parquet table", r.tr.Err())
		}
		return nil, io.EOF
	}
	rec := r.tr.Record()
	n := int(rec.NumRows())
	batch := make(Batch, n)
	cols := rec.Columns()
	for i := 0; i < n; i++ {
		cells := make([]Cell, len(cols))
		for j, col := range cols {
			if j == r.dateIdx {
				cells[j] = dateValue(col, i)
			} else {
				cells[j] = cellValue(col, i)
			}
		}
		batch[i] = Row{Schema: r.schema, Cells: cells}
	}
	return batch, nil
}

func (r *columnarReader) Close() error {
	if r.tr != nil {
		r.tr.Release()
		r.tr = nil
	}
	if r.tbl != nil {
		r.tbl.Release()
		r.tbl = nil
	}
	return nil
}

// cellValue maps an arrow value to a Cell by column type.
func cellValue(col arrow.Array, i int) Cell {
	if col.IsNull(i) {
		return Null()
	}
	switch a := col.(type) {
	case *array.Int8:
		return Int(int64(a.Value(i)))
	case *array.Int16:
		return Int(int64(a.Value(i)))
	case *array.Int32:
		return Int(int64(a.Value(i)))
	case *array.Int64:
		return Int(a.Value(i))
	case *array.Uint8:
		return Int(int64(a.Value(i)))
	case *array.Uint16:
		return Int(int64(a.Value(i)))
	case *array.Uint32:
		return Int(int64(a.Value(i)))
	case *array.Uint64:
		v := a.Value(i)
		if v > math.MaxInt64 {
			return Float(float64(v))
		}
		return Int(int64(v))
	case *array.Float16:
		return Float(float64(a.Value(i).Float32()))
	case *array.Float32:
		return Float(float64(a.Value(i)))
	case *array.Float64:
		return Float(a.Value(i))
	case *array.Boolean:
		return Bool(a.Value(i))
	case *array.String:
		return Text(a.Value(i))
	case *array.LargeString:
		return Text(a.Value(i))
	case *array.Date32:
		return Date(a.Value(i).ToTime())
	case *array.Date64:
		return Date(a.Value(i).ToTime())
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return Date(a.Value(i).ToTime(unit))
	default:
		return Text(col.ValueStr(i))
	}
}

// dateValue keeps temporal values and parses anything else day-first.
func dateValue(col arrow.Array, i int) Cell {
	if col.IsNull(i) {
		return Null()
	}
	switch col.DataType().ID() {
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return cellValue(col, i)
	case arrow.STRING, arrow.LARGE_STRING:
		return dateCell(cellValue(col, i).Text())
	default:
		return dateCell(col.ValueStr(i))
	}
}
