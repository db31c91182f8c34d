// Package transform converts filing HTML into plain text suitable for chunking.
package transform

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// nodes with no readable content
var droppedSelectors = "script, style, noscript, head, title"

// inline XBRL header holding hidden fact tables
const inlineXBRLHeader = "ix:header"

var (
	scriptRe      = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	styleRe       = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	blockEndRe    = regexp.MustCompile(`(?i)</(p|div|br|li|tr|h1|h2|h3|h4)>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe    = regexp.MustCompile(`[ \t]+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Service converts filing HTML into plain text
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// ToPlainText is best-effort and never fails: when the markdown conversion
// errors or yields nothing, tags are stripped with regular expressions instead.
func (s *Service) ToPlainText(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}

	text, err := s.convert(raw)
	if err != nil {
		s.logger.Warn().Err(err).Int("html_length", len(raw)).Msg("HTML conversion failed, using fallback")
		return StripTags(string(raw))
	}
	if strings.TrimSpace(text) == "" {
		s.logger.Warn().Int("html_length", len(raw)).Msg("HTML conversion produced empty output, applying fallback")
		return StripTags(string(raw))
	}

	s.logger.Debug().
		Int("html_length", len(raw)).
		Int("text_length", len(text)).
		Msg("Filing converted to text")

	return text
}

func (s *Service) convert(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	doc.Find(droppedSelectors).Remove()
	doc.Find("*").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return goquery.NodeName(sel) == inlineXBRLHeader
	}).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	cleaned, err := body.Html()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return normalize(markdown), nil
}

// StripTags is the regex fallback: drop script/style blocks, turn block ends
// into newlines, remove remaining tags and decode entities.
func StripTags(htmlStr string) string {
	text := scriptRe.ReplaceAllString(htmlStr, "")
	text = styleRe.ReplaceAllString(text, "")
	text = blockEndRe.ReplaceAllString(text, "\n")
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return normalize(text)
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = trailingSpace.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
