package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example Business</title>
  <link>https://example.com/business</link>
  <item>
    <title>Fed holds rates steady</title>
    <link>https://example.com/news/fed</link>
    <pubDate>Tue, 05 Mar 2024 10:00:00 GMT</pubDate>
    <dc:creator>Jane Doe</dc:creator>
  </item>
  <item>
    <title>Oil jumps</title>
    <link>/news/oil</link>
  </item>
  <item>
    <title>Fed holds rates steady (repeat)</title>
    <link>https://example.com/news/fed</link>
  </item>
  <item>
    <title>No link here</title>
  </item>
  <item>
    <title>Tech earnings</title>
    <link>https://example.com/news/tech</link>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <link href="https://example.org/"/>
  <entry>
    <title>Markets rally</title>
    <link href="https://example.org/markets-rally"/>
    <updated>2024-03-05T10:00:00Z</updated>
    <author><name>Kim Min</name></author>
  </entry>
</feed>`

// TestParse_RSS verifies RSS entries in order, resolved and de-duplicated
func TestParse_RSS(t *testing.T) {
	entries, err := Parse([]byte(rssFeed), 0)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "https://example.com/news/fed", entries[0].URL)
	assert.Equal(t, "Fed holds rates steady", entries[0].Title)
	assert.Equal(t, []string{"Jane Doe"}, entries[0].Authors)
	require.NotNil(t, entries[0].PublishedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), entries[0].PublishedAt.UTC())

	assert.Equal(t, "https://example.com/news/oil", entries[1].URL, "relative link resolved")
	assert.Nil(t, entries[1].PublishedAt)
	assert.Equal(t, "https://example.com/news/tech", entries[2].URL)
}

// TestParse_Atom verifies Atom entries
func TestParse_Atom(t *testing.T) {
	entries, err := Parse([]byte(atomFeed), 0)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.org/markets-rally", entries[0].URL)
	assert.Equal(t, []string{"Kim Min"}, entries[0].Authors)
	require.NotNil(t, entries[0].PublishedAt, "updated is used when published is missing")
}

// TestParseLinks_Limit verifies the cap
func TestParseLinks_Limit(t *testing.T) {
	links, err := ParseLinks([]byte(rssFeed), 2)
	require.NoError(t, err)

	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/news/fed", links[0].URL)
	assert.Equal(t, "https://example.com/news/oil", links[1].URL)
}

// TestParseLinks_KeepsEntryMetadata verifies authors and publication time
// travel with the link
func TestParseLinks_KeepsEntryMetadata(t *testing.T) {
	links, err := ParseLinks([]byte(rssFeed), 0)
	require.NoError(t, err)

	require.NotEmpty(t, links)
	assert.Equal(t, "Jane Doe", links[0].Author)
	require.NotNil(t, links[0].PublishedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), links[0].PublishedAt.UTC())
	assert.Nil(t, links[1].PublishedAt)
}

// TestParse_Invalid verifies malformed input is an error
func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("<html><body>not a feed</body></html>"), 0)
	assert.Error(t, err)
}
