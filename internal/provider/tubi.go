package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dlclark/regexp2"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/aphrodite747/app-m3u-generator/internal/catalog"
	"github.com/aphrodite747/app-m3u-generator/internal/channel"
	"github.com/aphrodite747/app-m3u-generator/internal/fetch"
	"github.com/aphrodite747/app-m3u-generator/internal/output"
	"github.com/aphrodite747/app-m3u-generator/internal/playlist"
	"github.com/aphrodite747/app-m3u-generator/internal/xmltv"
)

const (
	tubiName           = "tubi"
	tubiLabel          = "Tubi"
	TubiPageURL        = "https://tubitv.com/live"
	TubiProgrammingURL = "https://tubitv.com/oz/epg/programming"
	TubiDefaultMirror  = "https://raw.githubusercontent.com/BuddyChewChew/tubi-scraper/refs/heads/main/tubi_playlist.m3u"
	DefaultTubiBatch   = 150
	tubiGeneratorName  = "m3u-generator"
)

var tubiHeaders = map[string]string{
	"Referer": "https://tubitv.com/",
	"Origin":  "https://tubitv.com",
	"Accept":  "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8",
}

var (
	// stateStart finds the opening brace of the state object.
	stateStart = regexp2.MustCompile(`(?<=window\.__data\s*=\s*)\{`, 0)
	// jsDate unwraps new Date("...") to its string argument.
	jsDate = regexp2.MustCompile(`new Date\(\s*("(?:[^"\\]|\\.)*")\s*\)`, 0)
	// jsLiteral matches JavaScript-only literals in value position.
	jsLiteral = regexp2.MustCompile(`(?<=[:\[,]\s*)(?:-?Infinity|NaN|undefined)(?=\s*[,\]}])`, 0)
)

// ErrNoState means the live page carried no window.__data payload.
var ErrNoState = errors.New("tubi: window.__data not found")

// TubiDriver scrapes the Tubi live page for channel ids and categories, then
// pulls channel metadata and schedules from the programming API. When the
// scrape fails it falls back to a prebuilt mirror playlist.
type TubiDriver struct {
	PageURL        string
	ProgrammingURL string
	MirrorURL      string
	BatchSize      int
}

// NewTubiDriver returns a driver against the public Tubi endpoints.
func NewTubiDriver(opts TubiOptions) *TubiDriver {
	return &TubiDriver{
		PageURL:        TubiPageURL,
		ProgrammingURL: TubiProgrammingURL,
		MirrorURL:      opts.MirrorURL,
		BatchSize:      opts.BatchSize,
	}
}

func (d *TubiDriver) Name() string { return tubiName }

func (d *TubiDriver) Run(ctx context.Context, env *Env) (*Result, error) {
	if !env.wantRegion(catalog.AllRegion) {
		log.Printf("provider: %s: only publishes an \"all\" playlist, skipped by region filter", tubiName)
		return &Result{Service: tubiName}, nil
	}
	res, err := d.scrape(ctx, env)
	if err == nil {
		return res, nil
	}
	if d.MirrorURL == "" || ctx.Err() != nil {
		return nil, err
	}
	log.Printf("provider: %s: scrape failed (%v); using mirror", tubiName, err)
	return d.mirror(ctx, env)
}

func (d *TubiDriver) scrape(ctx context.Context, env *Env) (*Result, error) {
	page, err := env.Fetch.GetText(ctx, d.PageURL, fetch.Options{Headers: tubiHeaders})
	if err != nil {
		return nil, err
	}
	raw, err := extractState(page)
	if err != nil {
		if challengePage(page) {
			return nil, fmt.Errorf("%w (%v)", ErrBlocked, err)
		}
		return nil, err
	}
	categories, err := parseCategories(raw)
	if err != nil {
		return nil, err
	}
	if categories.Len() == 0 {
		return nil, fmt.Errorf("%s: empty channel map: %w", tubiName, ErrNoChannels)
	}
	ids := make([]string, 0, categories.Len())
	for p := categories.Oldest(); p != nil; p = p.Next() {
		ids = append(ids, p.Key)
	}

	var rows []tubiRow
	batch := d.BatchSize
	if batch <= 0 {
		batch = DefaultTubiBatch
	}
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		if err := env.wait(ctx); err != nil {
			return nil, err
		}
		var resp tubiProgramming
		u := d.ProgrammingURL + "?content_id=" + url.QueryEscape(strings.Join(ids[start:end], ","))
		if err := env.Fetch.GetJSON(ctx, u, fetch.Options{Headers: tubiHeaders}, &resp); err != nil {
			log.Printf("provider: %s: programming batch %d-%d: %v", tubiName, start, end, err)
			continue
		}
		rows = append(rows, resp.Rows...)
	}

	records, guide := buildTubi(rows, categories)
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", tubiName, ErrNoChannels)
	}
	channel.Sort(records, env.Sort)

	epgName := output.EPGName(tubiName)
	epgDoc, err := guide.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s: encode guide: %w", tubiName, err)
	}
	var epgURLs []string
	if u := env.selfURL(epgName); u != "" {
		epgURLs = []string{u}
	}
	return &Result{
		Service: tubiName,
		Outputs: []Output{{
			FileName: output.PlaylistName(tubiName, catalog.AllRegion),
			Region:   catalog.AllRegion,
			Content:  playlist.Bytes(epgURLs, records),
			Channels: len(records),
			EPGURLs:  epgURLs,
			Master:   true,
		}},
		EPG: []Document{{FileName: epgName, Content: epgDoc}},
	}, nil
}

// mirror copies a prebuilt playlist verbatim.
func (d *TubiDriver) mirror(ctx context.Context, env *Env) (*Result, error) {
	text, err := env.Fetch.GetText(ctx, d.MirrorURL, fetch.Options{Compression: fetch.Auto})
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "#EXTM3U") {
		return nil, fmt.Errorf("%s: mirror is not an M3U playlist: %w", tubiName, fetch.ErrDecode)
	}
	content := []byte(text + "\n")
	n := bytes.Count(content, []byte("#EXTINF"))
	if n == 0 {
		return nil, fmt.Errorf("%s: mirror: %w", tubiName, ErrNoChannels)
	}
	return &Result{
		Service: tubiName,
		Outputs: []Output{{
			FileName: output.PlaylistName(tubiName, catalog.AllRegion),
			Region:   catalog.AllRegion,
			Content:  content,
			Channels: n,
			EPGURLs:  playlist.HeaderEPGURLs(content),
			Master:   true,
		}},
	}, nil
}

// extractState finds the window.__data assignment in the page's scripts and
// returns it as parseable JSON.
func extractState(page string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	var obj string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "window.__data") {
			return true
		}
		m, err := stateStart.FindStringMatch(text)
		if err != nil || m == nil {
			return true
		}
		obj = balancedObject([]rune(text)[m.Index:])
		return obj == ""
	})
	if obj == "" {
		return nil, ErrNoState
	}
	fixed, err := repairJSON(obj)
	if err != nil {
		return nil, err
	}
	return []byte(fixed), nil
}

// balancedObject returns the {...} at the start of rs, honouring strings.
func balancedObject(rs []rune) string {
	depth := 0
	for i, c := range maskStrings(rs) {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return string(rs[:i+1])
			}
		}
	}
	return ""
}

// maskStrings returns a copy of rs with the contents of quoted strings
// replaced by '_'. Quotes stay, so indexes line up with rs.
func maskStrings(rs []rune) []rune {
	out := make([]rune, len(rs))
	copy(out, rs)
	inStr := false
	var quote rune
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		if !inStr {
			if c == '"' || c == '\'' {
				inStr, quote = true, c
			}
			continue
		}
		switch c {
		case quote:
			inStr = false
		case '\\':
			out[i] = '_'
			if i+1 < len(rs) {
				i++
				out[i] = '_'
			}
		default:
			out[i] = '_'
		}
	}
	return out
}

// repairJSON rewrites the JavaScript-only parts of an object literal.
// String values are left untouched.
func repairJSON(s string) (string, error) {
	s, err := replaceOutsideStrings(s, jsDate, func(g []string) string { return g[1] })
	if err != nil {
		return "", err
	}
	return replaceOutsideStrings(s, jsLiteral, func([]string) string { return "null" })
}

// replaceOutsideStrings replaces matches of re that start and end outside
// quoted strings. repl gets the original text of the match and its groups.
func replaceOutsideStrings(s string, re *regexp2.Regexp, repl func(groups []string) string) (string, error) {
	rs := []rune(s)
	var b strings.Builder
	last := 0
	m, err := re.FindStringMatch(string(maskStrings(rs)))
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		b.WriteString(string(rs[last:m.Index]))
		groups := m.Groups()
		parts := make([]string, len(groups))
		for i, g := range groups {
			parts[i] = string(rs[g.Index : g.Index+g.Length])
		}
		b.WriteString(repl(parts))
		last = m.Index + m.Length
	}
	if err != nil {
		return "", err
	}
	b.WriteString(string(rs[last:]))
	return b.String(), nil
}

// flexID accepts ids sent as strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	*f = flexID(b)
	return nil
}

type tubiContainer struct {
	Name      string `json:"name"`
	Container struct {
		Name string `json:"name"`
	} `json:"container"`
	Contents []flexID `json:"contents"`
}

type tubiState struct {
	EPG struct {
		ContentIDsByContainer *orderedmap.OrderedMap[string, []tubiContainer] `json:"contentIdsByContainer"`
	} `json:"epg"`
}

// parseCategories maps content id -> category name in page order. A channel
// listed under several containers keeps the first one.
func parseCategories(raw []byte) (*orderedmap.OrderedMap[string, string], error) {
	var st tubiState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%s: state: %v: %w", tubiName, err, fetch.ErrDecode)
	}
	byContainer := st.EPG.ContentIDsByContainer
	if byContainer == nil {
		return nil, fmt.Errorf("%s: epg.contentIdsByContainer: %w", tubiName, catalog.ErrPartialDocument)
	}
	out := orderedmap.New[string, string]()
	for p := byContainer.Oldest(); p != nil; p = p.Next() {
		for _, c := range p.Value {
			name := strings.TrimSpace(c.Name)
			if name == "" {
				name = strings.TrimSpace(c.Container.Name)
			}
			if name == "" {
				name = p.Key
			}
			for _, id := range c.Contents {
				if id == "" {
					continue
				}
				if _, seen := out.Get(string(id)); !seen {
					out.Set(string(id), name)
				}
			}
		}
	}
	return out, nil
}

type tubiProgramming struct {
	Rows []tubiRow `json:"rows"`
}

type tubiRow struct {
	ContentID flexID `json:"content_id"`
	Title     string `json:"title"`
	Images    struct {
		Thumbnail []string `json:"thumbnail"`
	} `json:"images"`
	VideoResources []struct {
		Manifest struct {
			URL string `json:"url"`
		} `json:"manifest"`
	} `json:"video_resources"`
	Programs []tubiProgram `json:"programs"`
}

type tubiProgram struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

func (r tubiRow) manifest() string {
	for _, v := range r.VideoResources {
		if u := strings.TrimSpace(v.Manifest.URL); u != "" {
			return u
		}
	}
	return ""
}

// buildTubi turns programming rows into playlist records and a guide.
// Rows without a playable manifest are dropped.
func buildTubi(rows []tubiRow, categories *orderedmap.OrderedMap[string, string]) ([]channel.Record, *xmltv.Document) {
	guide := &xmltv.Document{Generator: tubiGeneratorName}
	var records []channel.Record
	seen := map[string]bool{}
	for _, row := range rows {
		id := string(row.ContentID)
		stream := row.manifest()
		if id == "" || stream == "" || seen[id] {
			continue
		}
		seen[id] = true
		group, _ := categories.Get(id)
		if group == "" {
			group = tubiLabel
		}
		logo := ""
		if len(row.Images.Thumbnail) > 0 {
			logo = row.Images.Thumbnail[0]
		}
		rec := channel.Record{ID: id, TVGID: id, Name: row.Title, Logo: logo, Group: group, StreamURL: stream}.WithDefaults()
		records = append(records, rec)

		ch := xmltv.Channel{ID: id, DisplayName: rec.Name}
		if logo != "" {
			ch.Icon = &xmltv.Icon{Src: logo}
		}
		guide.Channels = append(guide.Channels, ch)
		for _, p := range row.Programs {
			start, err1 := time.Parse(time.RFC3339, p.StartTime)
			stop, err2 := time.Parse(time.RFC3339, p.EndTime)
			if err1 != nil || err2 != nil {
				continue
			}
			prog := xmltv.Programme{
				Start:   xmltv.FormatTime(start),
				Stop:    xmltv.FormatTime(stop),
				Channel: id,
				Title:   xmltv.Text{Lang: "en", Value: p.Title},
			}
			if d := strings.TrimSpace(p.Description); d != "" {
				prog.Desc = &xmltv.Text{Lang: "en", Value: d}
			}
			guide.Programmes = append(guide.Programmes, prog)
		}
	}
	return records, guide
}
