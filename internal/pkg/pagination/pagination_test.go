package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFromContextClamps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query      string
		page, size int
	}{
		{"", 1, 10},
		{"page=3&size=20", 3, 20},
		{"page=0&size=0", 1, 10},
		{"page=x&size=500", 1, 100},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+tc.query, nil)
		q := FromContext(c)
		if q.Page != tc.page || q.Size != tc.size {
			t.Errorf("%q: got %+v", tc.query, q)
		}
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, meta := Slice(items, Query{Page: 2, Size: 2})
	if len(page) != 2 || page[0] != 3 || page[1] != 4 {
		t.Errorf("page 2 = %v", page)
	}
	if meta.Total != 5 || meta.TotalPage != 3 || !meta.HasNextPage {
		t.Errorf("meta = %+v", meta)
	}

	page, meta = Slice(items, Query{Page: 9, Size: 2})
	if page == nil || len(page) != 0 || meta.HasNextPage {
		t.Errorf("past end = %v %+v", page, meta)
	}
}
