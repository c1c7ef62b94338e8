package genre

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/sydlexius/lineup/internal/provider"
)

// DefaultMinDescription is the shortest cleaned description accepted as
// evidence of a genre.
const DefaultMinDescription = 30

var (
	readMore    = regexp.MustCompile(`(?i)\s*read more on last\.fm[\s.]*$`)
	licenseNote = regexp.MustCompile(`(?i)\s*user-contributed text is available under the creative commons.*$`)
)

// DescriptionSource looks up the description of a tag. A nil result with a
// nil error means the tag has no description.
type DescriptionSource interface {
	TagDescription(ctx context.Context, tag string) (*provider.TagInfo, error)
}

// Rejection reasons reported by Validate.
const (
	ReasonTooShort      = "tag too short"
	ReasonBanned        = "banned term"
	ReasonNoDescription = "no description"
	ReasonShortDesc     = "description too short"
	ReasonUmbrella      = "umbrella term"
	ReasonNotGenre      = "description does not describe a genre"
	reasonAccepted      = ""
)

// Verdict is the outcome of validating one tag.
type Verdict struct {
	Tag      string
	Accepted bool
	Reason   string
	// Alias is the canonical genre name when the tag matched the alias
	// table. Aliased tags skip validation.
	Alias       string
	Description string
	URL         string
}

// Validator decides whether a candidate tag names a music genre.
type Validator struct {
	source         DescriptionSource
	lists          Lists
	minDescription int
}

// NewValidator creates a Validator.
func NewValidator(source DescriptionSource, lists Lists, minDescription int) *Validator {
	if minDescription <= 0 {
		minDescription = DefaultMinDescription
	}
	return &Validator{source: source, lists: lists, minDescription: minDescription}
}

// Validate classifies tag. The error is non-nil only when the description
// lookup failed; the tag is then neither accepted nor rejected.
func (v *Validator) Validate(ctx context.Context, tag string) (Verdict, error) {
	tag = strings.TrimSpace(strings.ToLower(tag))
	if canonical, ok := v.lists.GenreAlias(tag); ok {
		return Verdict{Tag: tag, Accepted: true, Alias: canonical}, nil
	}
	if utf8.RuneCountInString(tag) <= 1 {
		return reject(tag, ReasonTooShort), nil
	}
	if v.lists.IsBannedGenre(tag) {
		return reject(tag, ReasonBanned), nil
	}

	info, err := v.source.TagDescription(ctx, tag)
	if err != nil {
		return Verdict{Tag: tag}, err
	}
	if info == nil {
		return reject(tag, ReasonNoDescription), nil
	}
	desc := CleanDescription(info.Description)
	if reason := v.judge(tag, desc); reason != reasonAccepted {
		return reject(tag, reason), nil
	}
	return Verdict{Tag: tag, Accepted: true, Description: desc, URL: info.URL}, nil
}

func (v *Validator) judge(tag, desc string) string {
	if utf8.RuneCountInString(desc) < v.minDescription {
		return ReasonShortDesc
	}
	lower := strings.ToLower(desc)
	if strings.Contains(lower, "umbrella term") {
		return ReasonUmbrella
	}
	if strings.Contains(lower, "genre") || strings.Contains(lower, tag+" music") {
		return reasonAccepted
	}
	return ReasonNotGenre
}

func reject(tag, reason string) Verdict {
	return Verdict{Tag: tag, Reason: reason}
}

// CleanDescription strips markup, the trailing attribution link and a stray
// trailing period from a tag description.
func CleanDescription(raw string) string {
	text := stripMarkup(raw)
	text = licenseNote.ReplaceAllString(text, "")
	text = readMore.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSuffix(text, ".")
}

func stripMarkup(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}
