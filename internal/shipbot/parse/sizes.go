package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultSizeLabels is the size column order of the ledger.
var DefaultSizeLabels = []string{"XS", "S", "M", "L", "XL", "2XL", "3XL", "4XL", "5XL", "6XL", "7XL"}

var defaultAliases = map[string]string{
	"XXL":   "2XL",
	"XXXL":  "3XL",
	"XXXXL": "4XL",
}

// maxNormalizePasses bounds the separator insertion loop.
const maxNormalizePasses = 20

var (
	sizeLabelShape = regexp.MustCompile(`^\d*[XSML]+$`)
	dashSpacing    = regexp.MustCompile(`([A-Za-z])\s*[-–—]\s*(\d)`)
	gluedQuantity  = regexp.MustCompile(`-(\d+)([A-Za-z]+)`)
	gluedToken     = regexp.MustCompile(`^\d+[A-Za-z]`)
)

// IsSizeLabel reports whether s has the shape of a garment size label such as
// "M", "XL" or "3XL".
func IsSizeLabel(s string) bool {
	return sizeLabelShape.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// ParseError describes one rejected token of a size list.
type ParseError struct {
	Token  string
	Reason string
}

func (e ParseError) Error() string {
	if e.Token == "" {
		return e.Reason
	}
	return fmt.Sprintf("%q: %s", e.Token, e.Reason)
}

// ParseErrors collects every problem found in one input.
type ParseErrors []ParseError

func (e ParseErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, pe := range e {
		msgs = append(msgs, pe.Error())
	}
	return strings.Join(msgs, "; ")
}

// Group is one comma separated section of a size list, optionally named
// ("Kazan: S-10 M-5").
type Group struct {
	Name  string
	Sizes map[string]int
}

// SizeParser parses free-form size lists against a fixed set of labels.
type SizeParser struct {
	labels     []string
	known      map[string]string
	colonLabel *regexp.Regexp
}

// NewSizeParser builds a parser for labels. Well known aliases (XXL for 2XL)
// resolve to their canonical label when the canonical label is configured.
func NewSizeParser(labels []string) *SizeParser {
	p := &SizeParser{known: make(map[string]string)}
	for _, l := range labels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, dup := p.known[l]; dup {
			continue
		}
		p.labels = append(p.labels, l)
		p.known[l] = l
	}
	for alias, canonical := range defaultAliases {
		if _, ok := p.known[canonical]; ok {
			if _, taken := p.known[alias]; !taken {
				p.known[alias] = canonical
			}
		}
	}

	spellings := make([]string, 0, len(p.known))
	for s := range p.known {
		spellings = append(spellings, regexp.QuoteMeta(s))
	}
	// longest first so "XL" is not matched as "L"
	sort.Slice(spellings, func(i, j int) bool {
		if len(spellings[i]) != len(spellings[j]) {
			return len(spellings[i]) > len(spellings[j])
		}
		return spellings[i] < spellings[j]
	})
	if len(spellings) > 0 {
		p.colonLabel = regexp.MustCompile(`(?i)(^|[\s,:])(` + strings.Join(spellings, "|") + `)\s*:\s*(\d)`)
	}
	return p
}

var defaultParser = NewSizeParser(DefaultSizeLabels)

// Labels returns the configured labels in ledger column order.
func (p *SizeParser) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

// Canonical maps a user typed label to its configured spelling.
func (p *SizeParser) Canonical(label string) (string, bool) {
	c, ok := p.known[strings.ToUpper(strings.TrimSpace(label))]
	return c, ok
}

// Normalize inserts the separators users tend to leave out, repeating until the
// text stops changing or the pass limit is hit.
func (p *SizeParser) Normalize(text string) string {
	cur := text
	for pass := 0; pass < maxNormalizePasses; pass++ {
		next := dashSpacing.ReplaceAllString(cur, "$1-$2")
		if p.colonLabel != nil {
			next = p.colonLabel.ReplaceAllString(next, "$1$2-$3")
		}
		next = gluedQuantity.ReplaceAllStringFunc(next, p.splitGlued)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

// splitGlued separates a quantity from the label typed straight after it
// ("-10xl" becomes "-10 xl"). The split must leave a known label; when digits
// could belong to either side ("-102xl": 10 and 2XL, or 102 and XL) the text is
// left alone and parseToken reports it.
func (p *SizeParser) splitGlued(m string) string {
	sub := gluedQuantity.FindStringSubmatch(m)
	digits, letters := sub[1], sub[2]
	split := -1
	for k := 1; k <= len(digits); k++ {
		if _, ok := p.Canonical(digits[k:] + letters); !ok {
			continue
		}
		if split >= 0 {
			return m
		}
		split = k
	}
	if split < 0 {
		split = len(digits)
	}
	return "-" + digits[:split] + " " + digits[split:] + letters
}

// ParseGroups splits text on commas into groups and each group on whitespace into
// SIZE-QTY tokens. A group may carry a name before a colon. All problems are
// collected; valid tokens are still returned.
func (p *SizeParser) ParseGroups(text string) ([]Group, ParseErrors) {
	var (
		groups []Group
		errs   ParseErrors
	)
	for _, part := range strings.Split(p.Normalize(text), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		g := Group{Sizes: make(map[string]int)}
		body := part
		if name, rest, found := strings.Cut(part, ":"); found {
			g.Name = CleanName(name)
			body = rest
		}
		tokens := strings.Fields(body)
		if len(tokens) == 0 {
			errs = append(errs, ParseError{Token: part, Reason: "no sizes given"})
			continue
		}
		for _, tok := range tokens {
			label, qty, err := p.parseToken(tok)
			if err != nil {
				errs = append(errs, *err)
				continue
			}
			g.Sizes[label] = qty
		}
		groups = append(groups, g)
	}
	if len(groups) == 0 && len(errs) == 0 {
		errs = append(errs, ParseError{Reason: "no sizes given"})
	}
	return groups, errs
}

func (p *SizeParser) parseToken(tok string) (string, int, *ParseError) {
	rawLabel, rawQty, found := strings.Cut(tok, "-")
	if !found || rawLabel == "" || rawQty == "" {
		return "", 0, &ParseError{Token: tok, Reason: "expected SIZE-QUANTITY, for example S-10"}
	}
	label, ok := p.Canonical(rawLabel)
	if !ok {
		return "", 0, &ParseError{Token: tok, Reason: fmt.Sprintf("unknown size %s", strings.ToUpper(rawLabel))}
	}
	qty, err := strconv.Atoi(rawQty)
	if err != nil && gluedToken.MatchString(rawQty) {
		return "", 0, &ParseError{Token: tok, Reason: "cannot tell where the quantity ends, put a space before the next size"}
	}
	if err != nil {
		return "", 0, &ParseError{Token: tok, Reason: "quantity is not a number"}
	}
	if qty <= 0 {
		return "", 0, &ParseError{Token: tok, Reason: fmt.Sprintf("quantity for %s must be positive", label)}
	}
	return label, qty, nil
}

// ParseSizeList parses text into one size mapping, merging all groups. A label
// given twice keeps the last quantity.
func (p *SizeParser) ParseSizeList(text string) (map[string]int, ParseErrors) {
	groups, errs := p.ParseGroups(text)
	sizes := make(map[string]int)
	for _, g := range groups {
		for label, qty := range g.Sizes {
			sizes[label] = qty
		}
	}
	return sizes, errs
}

// ParseSizeList parses text with the default size labels.
func ParseSizeList(text string) (map[string]int, ParseErrors) {
	return defaultParser.ParseSizeList(text)
}

// FormatSizes renders sizes in label order as "S-10 M-5", skipping zero entries.
func FormatSizes(sizes map[string]int, labels []string) string {
	parts := make([]string, 0, len(sizes))
	for _, l := range labels {
		if q := sizes[l]; q > 0 {
			parts = append(parts, fmt.Sprintf("%s-%d", l, q))
		}
	}
	return strings.Join(parts, " ")
}
