package tabular

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"earapi/internal/apperr"
	"earapi/internal/model"
	"earapi/internal/storage"
	"earapi/internal/storage/mocks"
)

// parquetFixture writes n daily rows starting 2021-01-01.
func parquetFixture(t *testing.T, n int) []byte {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "ear_data", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "nom_reservatorio", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "val_ear", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "ativo", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		b.Field(0).(*array.Date32Builder).Append(arrow.Date32FromTime(start.AddDate(0, 0, i)))
		if i == 1 {
			b.Field(1).(*array.StringBuilder).AppendNull()
		} else {
			b.Field(1).(*array.StringBuilder).Append("Furnas")
		}
		b.Field(2).(*array.Float64Builder).Append(float64(i) + 0.5)
		b.Field(3).(*array.Int64Builder).Append(int64(i))
		b.Field(4).(*array.BooleanBuilder).Append(i%2 == 0)
	}
	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))
	return buf.Bytes()
}

func TestColumnar_StreamsWithRanges(t *testing.T) {
	data := parquetFixture(t, 5)
	var ranged atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			ranged.Add(1)
		}
		http.ServeContent(w, r, "ear.parquet", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()

	r, err := NewOpener(testFetcher(), testReaderConfig(2)).Open(context.Background(), srv.URL, model.FormatColumnar)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"ear_data", "nom_reservatorio", "val_ear", "id", "ativo"}, r.Schema().Columns())
	assert.Positive(t, ranged.Load())

	batches := readAll(t, r)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)

	row := batches[0][0]
	d, _ := row.Get("ear_data")
	assert.Equal(t, KindDate, d.Kind())
	assert.Equal(t, "2021-01-01", d.String())
	v, _ := row.Get("val_ear")
	assert.Equal(t, Float(0.5), v)
	id, _ := row.Get("id")
	assert.Equal(t, Int(0), id)
	ativo, _ := row.Get("ativo")
	assert.Equal(t, KindBool, ativo.Kind())
	assert.True(t, ativo.Bool())

	name, _ := batches[0][1].Get("nom_reservatorio")
	assert.True(t, name.IsNull())
}

// plainServer serves data without range support.
func plainServer(t *testing.T, data []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &gets
}

func TestColumnar_FallsBackToDownload(t *testing.T) {
	srv, gets := plainServer(t, parquetFixture(t, 3))

	r, err := NewOpener(testFetcher(), testReaderConfig(100)).Open(context.Background(), srv.URL, model.FormatColumnar)
	require.NoError(t, err)
	defer r.Close()

	batches := readAll(t, r)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Equal(t, int32(1), gets.Load())
}

func TestColumnar_MirrorMissThenPut(t *testing.T) {
	data := parquetFixture(t, 3)
	srv, gets := plainServer(t, data)

	st := new(mocks.MockStorage)
	o := NewOpener(testFetcher(), testReaderConfig(100), WithMirror(st, "resources"))
	key := o.mirrorKey(srv.URL)

	st.On("Get", mock.Anything, key).Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound).Once()
	st.On("Put", mock.Anything, key, mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
		return opt.Size == int64(len(data)) && opt.ContentType == parquetContentType
	})).Return(storage.ObjectInfo{Key: key}, nil).Once()

	r, err := o.Open(context.Background(), srv.URL, model.FormatColumnar)
	require.NoError(t, err)
	defer r.Close()

	assert.Len(t, readAll(t, r)[0], 3)
	assert.Equal(t, int32(1), gets.Load())
	st.AssertExpectations(t)
}

func TestColumnar_MirrorHit(t *testing.T) {
	data := parquetFixture(t, 4)
	srv, gets := plainServer(t, []byte("not served"))

	st := new(mocks.MockStorage)
	o := NewOpener(testFetcher(), testReaderConfig(100), WithMirror(st, "resources"))
	key := o.mirrorKey(srv.URL)
	assert.Regexp(t, `^resources/[0-9a-f]{64}\.parquet$`, key)

	st.On("Get", mock.Anything, key).Return(io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Key: key}, nil).Once()

	r, err := o.Open(context.Background(), srv.URL, model.FormatColumnar)
	require.NoError(t, err)
	defer r.Close()

	assert.Len(t, readAll(t, r)[0], 4)
	assert.Equal(t, int32(0), gets.Load())
	st.AssertExpectations(t)
}

func TestColumnar_InvalidFile(t *testing.T) {
	srv, _ := plainServer(t, []byte("definitely not parquet"))

	_, err := NewOpener(testFetcher(), testReaderConfig(100)).Open(context.Background(), srv.URL, model.FormatColumnar)
	assert.ErrorIs(t, err, apperr.ErrDecode)
}

func TestDateValue_StringColumn(t *testing.T) {
	b := array.NewStringBuilder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues([]string{" 05/01/2021 ", "not-a-date"}, nil)
	b.AppendNull()
	arr := b.NewArray()
	defer arr.Release()

	assert.Equal(t, "2021-01-05", dateValue(arr, 0).String())
	assert.True(t, dateValue(arr, 1).IsNull())
	assert.True(t, dateValue(arr, 2).IsNull())
}
