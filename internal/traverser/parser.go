package traverser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/normalize"
)

// Link is an anchor found on a page.
type Link struct {
	Text string
	Href string
}

// ProjectPage holds what a project detail page publishes.
type ProjectPage struct {
	Title string
	Info  string
	Files []Link
}

// Parser extracts links and fields from the site's pages.
type Parser interface {
	YearLinks(page *goquery.Document) []Link
	DepartmentLinks(page *goquery.Document) []Link
	ProjectLinks(page *goquery.Document) (projects []Link, next string)
	Project(page *goquery.Document) ProjectPage
}

// SiteLayout parses the DREAL PACA decision pages.
type SiteLayout struct{}

var _ Parser = SiteLayout{}

// YearLinks returns the "Dossiers 20xx" links of the landing page.
func (SiteLayout) YearLinks(page *goquery.Document) []Link {
	return links(page.Find("#contenu div.fr-collapse div > a"))
}

// DepartmentLinks returns one tile per department of a year page.
func (SiteLayout) DepartmentLinks(page *goquery.Document) []Link {
	return links(page.Find("#contenu a.fr-tile__link"))
}

// ProjectLinks returns the project cards and the next page link, if any.
func (SiteLayout) ProjectLinks(page *goquery.Document) ([]Link, string) {
	projects := links(page.Find("#contenu .fr-card__link"))
	next, _ := page.Find("#contenu .fr-pagination__list .fr-pagination__link--next[href]").First().Attr("href")
	return projects, strings.TrimSpace(next)
}

// Project returns the title, information block and downloads of a project page.
func (SiteLayout) Project(page *goquery.Document) ProjectPage {
	info := normalize.InfoBlock(textNodes(page.Find(".texte-article")))
	if info == "" {
		if lead := page.Find(".fr-text--lead").First(); lead.Length() > 0 {
			if nodes := textNodes(lead); len(nodes) > 0 {
				info = normalize.InfoBlock(nodes[:1])
			}
		}
	}
	return ProjectPage{
		Title: strings.TrimSpace(firstText(page.Find("h1.titre-article").First())),
		Info:  info,
		Files: links(page.Find("#contenu div.fr-downloads-group a.fr-download__link")),
	}
}

func links(sel *goquery.Selection) []Link {
	out := make([]Link, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		out = append(out, Link{Text: strings.TrimSpace(firstText(s)), Href: strings.TrimSpace(href)})
	})
	return out
}

// firstText returns the first non-blank text node directly under the selection,
// falling back to the full text.
func firstText(sel *goquery.Selection) string {
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
				return c.Data
			}
		}
	}
	return sel.Text()
}

// textNodes returns every text node below the selection in document order.
func textNodes(sel *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}
