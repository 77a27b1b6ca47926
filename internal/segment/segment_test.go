package segment

import (
	"log/slog"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebcovid/caseledger/internal/diag"
	"github.com/ebcovid/caseledger/internal/extract"
)

const twoPostings = `<html><body>
<article>
 <div class="entry-content">
  <p>Updates are posted as they are received.</p>
  <pre>Posted on October 17, 2020:</pre>
  <ul>
   <li><h3>#1,234: Employee from Groton facility, Dept. 431, Bldg. 88, last day of work on October 12 and tested on October 15.</h3></li>
   <li><h3>#1,235: Employee from Quonset Point facility, Dept. 902, Bldg. 2010, last day of work on October 9 and tested on October 14.</h3></li>
  </ul>
  <p>Posted on October 18:</p>
  <ul>
   <li>summary only, no heading</li>
   <li><h3>#1,236: Employee from Bangor facility tested on October 16.</h3></li>
  </ul>
 </div>
</article>
</body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newSegmenter(t *testing.T) (*Segmenter, *diag.Collector) {
	t.Helper()
	reg, err := extract.Builtin()
	require.NoError(t, err)
	set, err := reg.Get("v3")
	require.NoError(t, err)

	c := diag.NewCollector()
	return New(extract.New(set, c), c, testLogger()), c
}

func TestSegmenter_Entries(t *testing.T) {
	t.Parallel()

	s, c := newSegmenter(t)
	doc, err := Parse(strings.NewReader(twoPostings))
	require.NoError(t, err)

	entries := slices.Collect(s.Entries(doc))
	require.Len(t, entries, 3)

	oct17 := time.Date(2020, time.October, 17, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, oct17, entries[0].Posted)
	assert.True(t, strings.HasPrefix(entries[0].Text, "#1,234:"))
	assert.Equal(t, oct17, entries[1].Posted)
	assert.True(t, strings.HasPrefix(entries[1].Text, "#1,235:"))

	// Header without a year falls back to 1990.
	assert.Equal(t, time.Date(PostingFallbackYear, time.October, 18, 0, 0, 0, 0, time.UTC), entries[2].Posted)
	assert.True(t, strings.HasPrefix(entries[2].Text, "#1,236:"))

	require.Equal(t, 1, c.Count(diag.KindStructural))
	assert.Equal(t, "li", c.Items()[0].Field)
	assert.Equal(t, "summary only, no heading", c.Items()[0].Text)
}

func TestSegmenter_Entries_StopsEarly(t *testing.T) {
	t.Parallel()

	s, _ := newSegmenter(t)
	doc, err := Parse(strings.NewReader(twoPostings))
	require.NoError(t, err)

	var got []Entry
	for e := range s.Entries(doc) {
		got = append(got, e)
		break
	}
	assert.Len(t, got, 1)
}

func TestSegmenter_Entries_NoArticle(t *testing.T) {
	t.Parallel()

	s, c := newSegmenter(t)
	doc, err := Parse(strings.NewReader("<html><body><div><p>Posted on May 1, 2021</p></div></body></html>"))
	require.NoError(t, err)

	assert.Empty(t, slices.Collect(s.Entries(doc)))
	assert.Equal(t, 1, c.Count(diag.KindStructural))
}

func TestSegmenter_Entries_BadPostingDate(t *testing.T) {
	t.Parallel()

	const page = `<article><div>
<p>Posted on Smarch 40, 2021:</p>
<ul><li><h3>#1: Employee from Groton facility</h3></li></ul>
<p>Posted on May 1, 2021:</p>
<ul><li><h3>#2: Employee from Groton facility</h3></li></ul>
<p>Posted on May 2, 2021:</p>
</div></article>`

	s, c := newSegmenter(t)
	doc, err := Parse(strings.NewReader(page))
	require.NoError(t, err)

	entries := slices.Collect(s.Entries(doc))
	require.Len(t, entries, 1)
	assert.Equal(t, "#2: Employee from Groton facility", entries[0].Text)

	assert.Equal(t, 1, c.Count(diag.KindDateMalformed))
	// one for the bad date, one for the trailing header without a list
	assert.Equal(t, 2, c.Count(diag.KindStructural))
}
