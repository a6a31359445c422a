package tracking

import (
	"github.com/goccy/go-json"
)

// DateLayout is the download_date format.
const DateLayout = "2006-01-02 15:04:05"

// Entry is the persisted record of one downloaded track.
//
// Fields the document carries but Entry does not model are kept in extra and written back unchanged.
type Entry struct {
	Name            string
	Artists         string
	FilePath        string
	SourceReference string
	SearchQuery     string
	DownloadDate    string

	extra map[string]json.RawMessage
}

var knownKeys = []string{"name", "artists", "file_path", "source_reference", "search_query", "download_date", "youtube_url"}

// UnmarshalJSON decodes an entry, defaulting missing fields to "" and accepting the
// legacy youtube_url key as the source reference.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	str := func(key string) string {
		var s string
		if v, ok := raw[key]; ok {
			_ = json.Unmarshal(v, &s)
		}
		return s
	}

	*e = Entry{
		Name:            str("name"),
		Artists:         str("artists"),
		FilePath:        str("file_path"),
		SourceReference: str("source_reference"),
		SearchQuery:     str("search_query"),
		DownloadDate:    str("download_date"),
	}
	if e.SourceReference == "" {
		e.SourceReference = str("youtube_url")
	}

	for _, k := range knownKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		e.extra = raw
	}
	return nil
}

// MarshalJSON writes the known fields plus any preserved unknown fields.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 6+len(e.extra))
	for k, v := range e.extra {
		out[k] = v
	}
	out["name"] = e.Name
	out["artists"] = e.Artists
	out["file_path"] = e.FilePath
	out["source_reference"] = e.SourceReference
	out["search_query"] = e.SearchQuery
	out["download_date"] = e.DownloadDate
	return json.MarshalNoEscape(out)
}

// Extra returns the raw value of an unmodelled field.
func (e Entry) Extra(key string) (json.RawMessage, bool) {
	v, ok := e.extra[key]
	return v, ok
}
