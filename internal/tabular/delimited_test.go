package tabular

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earapi/internal/apperr"
	"earapi/internal/config"
	"earapi/internal/fetch"
	"earapi/internal/metrics"
	"earapi/internal/model"
)

func testFetcher() *fetch.Client {
	return fetch.New(config.FetchConfig{
		ConnectTimeout:  time.Second,
		CatalogTimeout:  2 * time.Second,
		DownloadTimeout: 2 * time.Second,
		Retries:         1,
		BackoffInitial:  time.Millisecond,
		RetryStatuses:   []int{503},
	})
}

func testReaderConfig(chunk int) config.ReaderConfig {
	return config.ReaderConfig{
		Separator:  ';',
		NullTokens: []string{"", " ", "#"},
		ChunkRows:  chunk,
		DateColumn: "ear_data",
		NameColumn: "nom_reservatorio",
	}
}

func serveBytes(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func readAll(t *testing.T, r Reader) []Batch {
	t.Helper()
	var out []Batch
	for {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, b)
	}
}

func TestDelimited_ChunksAndCells(t *testing.T) {
	body := "\xEF\xBB\xBFear_data;nom_reservatorio;val_ear\n" +
		"01/01/2021;Furnas;1.234,56\n" +
		"02/01/2021;###;\n" +
		"bad;Tres Marias; \n" +
		"04/01/2021;Sobradinho\n" +
		"05/01/2021;Itaipu;10;extra\n"
	srv, _ := serveBytes(t, []byte(body))

	o := NewOpener(testFetcher(), testReaderConfig(2))
	r, err := o.Open(context.Background(), srv.URL+"/ear.csv", model.FormatCSV)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"ear_data", "nom_reservatorio", "val_ear"}, r.Schema().Columns())

	batches := readAll(t, r)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)

	first := batches[0][0]
	d, _ := first.Get("ear_data")
	assert.Equal(t, KindDate, d.Kind())
	assert.Equal(t, "2021-01-01", d.String())
	v, _ := first.Get("val_ear")
	assert.Equal(t, Text("1.234,56"), v)

	second := batches[0][1]
	name, _ := second.Get("nom_reservatorio")
	assert.True(t, name.IsNull())
	val, _ := second.Get("val_ear")
	assert.True(t, val.IsNull())

	third := batches[1][0]
	d, _ = third.Get("ear_data")
	assert.True(t, d.IsNull(), "unparseable date is null")
	val, _ = third.Get("val_ear")
	assert.True(t, val.IsNull())

	short := batches[1][1]
	assert.Len(t, short.Cells, 3)
	val, _ = short.Get("val_ear")
	assert.True(t, val.IsNull())

	long := batches[2][0]
	assert.Len(t, long.Cells, 3)
}

func TestDelimited_Latin1Fallback(t *testing.T) {
	body := "ear_data;nom_reservatorio\n" +
		"01/01/2021;Furnas\n" +
		"02/01/2021;Emborcacao\n" +
		"03/01/2021;Serra da Mesa\n" +
		"04/01/2021;S\xe3o Sim\xe3o\n" +
		"05/01/2021;Tr\xeas Marias\n"
	srv, hits := serveBytes(t, []byte(body))

	reg := prometheus.NewRegistry()
	m, err := metrics.NewPipeline(reg)
	require.NoError(t, err)

	o := NewOpener(testFetcher(), testReaderConfig(2), WithMetrics(m))
	r, err := o.Open(context.Background(), srv.URL, model.FormatCSV)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, b := range readAll(t, r) {
		for _, row := range b {
			c, _ := row.Get("nom_reservatorio")
			names = append(names, c.String())
		}
	}
	assert.Equal(t, []string{"Furnas", "Emborcacao", "Serra da Mesa", "São Simão", "Três Marias"}, names)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDelimited_Latin1Header(t *testing.T) {
	srv, _ := serveBytes(t, []byte("ear_data;reservat\xf3rio\n01/01/2021;A\n"))

	r, err := NewOpener(testFetcher(), testReaderConfig(10)).Open(context.Background(), srv.URL, model.FormatCSV)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"ear_data", "reservatório"}, r.Schema().Columns())
	assert.Len(t, readAll(t, r), 1)
}

func TestDelimited_Errors(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		srv, _ := serveBytes(t, nil)
		_, err := NewOpener(testFetcher(), testReaderConfig(10)).Open(context.Background(), srv.URL, model.FormatCSV)
		assert.ErrorIs(t, err, apperr.ErrDecode)
	})

	t.Run("upstream not found", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := NewOpener(testFetcher(), testReaderConfig(10)).Open(context.Background(), srv.URL, model.FormatCSV)
		assert.ErrorIs(t, err, apperr.ErrUpstreamFetch)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := NewOpener(testFetcher(), testReaderConfig(10)).Open(context.Background(), "http://x", model.FormatOther)
		assert.ErrorIs(t, err, apperr.ErrDecode)
	})
}

func TestIsNullToken(t *testing.T) {
	tokens := []string{"", " ", "#"}
	assert.True(t, isNullToken("", tokens))
	assert.True(t, isNullToken(" ", tokens))
	assert.True(t, isNullToken("#", tokens))
	assert.True(t, isNullToken("#####", tokens))
	assert.False(t, isNullToken("x#", tokens))
	assert.False(t, isNullToken("  ", tokens))
	assert.False(t, isNullToken("###", []string{"N/A"}))
}
