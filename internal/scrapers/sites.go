package scrapers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ListSelectors locate product links on a site's listing pages.
type ListSelectors struct {
	// Product matches the anchor of each product card.
	Product string
	// NextPage matches the pagination anchor for the following page.
	NextPage string
}

// DetailSelectors extract fields from a product page.
type DetailSelectors struct {
	Title      string
	Price      string
	FinalPrice string
	Image      string
	AmazonLink string
}

// SiteConfig is the selector-driven description of one deal site. The
// executors are generic; everything site-specific lives here.
type SiteConfig struct {
	Name string
	// BaseURL is the scheme+host prefix of the site.
	BaseURL string
	// ListPath is the listing page path with a %d page placeholder.
	ListPath string
	List     ListSelectors
	Detail   DetailSelectors
}

// ListURL returns the absolute URL of the given listing page.
func (s SiteConfig) ListURL(page int) string {
	return s.BaseURL + fmt.Sprintf(s.ListPath, page)
}

// Sites returns the built-in deal site configurations keyed by name.
func Sites() map[string]SiteConfig {
	return map[string]SiteConfig{
		SiteRebaid: {
			Name:     SiteRebaid,
			BaseURL:  "https://rebaid.com",
			ListPath: "/buyer?page=%d",
			List: ListSelectors{
				Product:  ".product-card a.product-link",
				NextPage: "ul.pagination a[rel=next]",
			},
			Detail: DetailSelectors{
				Title:      "h1.product-title",
				Price:      ".price-block .original-price",
				FinalPrice: ".price-block .final-price",
				Image:      ".product-gallery img",
				AmazonLink: "a[href*='amazon.com']",
			},
		},
		SiteRebateKey: {
			Name:     SiteRebateKey,
			BaseURL:  "https://rebatekey.com",
			ListPath: "/rebates?page=%d",
			List: ListSelectors{
				Product:  ".rebate-list .rebate-item > a",
				NextPage: "nav.pager a.pager-next",
			},
			Detail: DetailSelectors{
				Title:      "h1.rebate-title",
				Price:      ".rebate-pricing .price-old",
				FinalPrice: ".rebate-pricing .price-new",
				Image:      ".rebate-images img.main",
				AmazonLink: "a[href*='amazon.com']",
			},
		},
		SiteMyVipon: {
			Name:     SiteMyVipon,
			BaseURL:  "https://www.myvipon.com",
			ListPath: "/list?page=%d",
			List: ListSelectors{
				Product:  ".goods-list .goods-item a.goods-link",
				NextPage: ".page-wrap a.next",
			},
			Detail: DetailSelectors{
				Title:      ".product-detail h1",
				Price:      ".product-detail .price del",
				FinalPrice: ".product-detail .price strong",
				Image:      ".product-detail .pic img",
				AmazonLink: "a[href*='amazon.com']",
			},
		},
	}
}

// SiteByName resolves a built-in site configuration.
func SiteByName(name string) (SiteConfig, error) {
	site, ok := Sites()[name]
	if !ok {
		return SiteConfig{}, fmt.Errorf("unknown site %q", name)
	}
	return site, nil
}

var asinPattern = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)

// ASINFromURL extracts the Amazon ASIN from a product link, or "".
func ASINFromURL(rawURL string) string {
	m := asinPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParsePrice reads a display price like "$1,299.99" into a float. Returns
// zero for text that holds no number.
func ParsePrice(text string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.':
			return r
		default:
			return -1
		}
	}, text)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
