package googlecse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/iWorld-y/news_crawler/internal/search"
)

func TestClient_Search(t *testing.T) {
	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "cx-id", q.Get("cx"))
		assert.Equal(t, "lang_id", q.Get("lr"))
		assert.Equal(t, "d1", q.Get("dateRestrict"))
		start := q.Get("start")
		starts = append(starts, start)
		w.Header().Set("Content-Type", "application/json")
		if start == "1" {
			fmt.Fprint(w, `{"items":[`)
			for i := 0; i < 10; i++ {
				if i > 0 {
					fmt.Fprint(w, ",")
				}
				fmt.Fprintf(w, `{"link":"https://berita.example/%d","title":"t%d"}`, i, i)
			}
			fmt.Fprint(w, `]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"link":"https://berita.example/last"}]}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "key", "cx-id",
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	resp, err := c.Search(context.Background(), &search.Request{Query: "banjir", MaxResults: 15, Language: "id", Days: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "11"}, starts)
	assert.Len(t, resp.Results, 11)
	assert.Equal(t, "https://berita.example/last", resp.Results[10].URL)
}

func TestNewClient_RequiresCX(t *testing.T) {
	_, err := NewClient(context.Background(), "key", "")
	assert.Error(t, err)
}
