package scrapers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASINFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.amazon.com/dp/B0ABCD1234", "B0ABCD1234"},
		{"https://www.amazon.com/Some-Product/dp/B0ABCD1234?ref=xyz", "B0ABCD1234"},
		{"https://www.amazon.com/gp/product/B09XYZW876", "B09XYZW876"},
		{"https://rebaid.com/product/123", ""},
		{"https://www.amazon.com/dp/short", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ASINFromURL(tc.url), tc.url)
	}
}

func TestParsePrice(t *testing.T) {
	assert.Equal(t, 19.99, ParsePrice("$19.99"))
	assert.Equal(t, 1299.99, ParsePrice(" $1,299.99 "))
	assert.Equal(t, 5.0, ParsePrice("5 USD"))
	assert.Equal(t, 0.0, ParsePrice("free"))
	assert.Equal(t, 0.0, ParsePrice(""))
}

func TestSiteByName(t *testing.T) {
	site, err := SiteByName(SiteRebaid)
	require.NoError(t, err)
	assert.Equal(t, SiteRebaid, site.Name)
	assert.NotEmpty(t, site.List.Product)
	assert.NotEmpty(t, site.Detail.Title)

	_, err = SiteByName("craigslist")
	assert.Error(t, err)
}

func TestSiteConfig_ListURL(t *testing.T) {
	site := SiteConfig{BaseURL: "https://example.com", ListPath: "/deals?page=%d"}
	assert.Equal(t, "https://example.com/deals?page=3", site.ListURL(3))
}
