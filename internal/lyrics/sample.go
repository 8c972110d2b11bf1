package lyrics

import "fmt"

// sampleBody はサンプル歌詞の共通本文。
const sampleBody = `Verse 1:
This is where the magic happens
When the music starts to play
Every word becomes a feeling
That can take your breath away

Chorus:
Share the moment, share the feeling
Let the lyrics speak your heart
Every song tells a story
Every word can be a start

Verse 2:
In the silence between the notes
There's a space for you and me
Where the music meets emotion
And we find our harmony

(Bridge)
Sometimes words aren't enough
But music fills the space
When you share a song with someone
You're sharing your embrace`

// SampleLyrics は歌詞が取得できなかった場合のサンプル歌詞を返す。
func SampleLyrics(artist, title string) string {
	return fmt.Sprintf(`[Sample lyrics for %q by %s]

%s

[Note: These are sample lyrics. Real lyrics may not be available for this song.]`, title, artist, sampleBody)
}

// enhancedSampleLyrics はGeniusのメタデータ付きのサンプル歌詞を返す。
func enhancedSampleLyrics(title, artist, year, album string) string {
	header := fmt.Sprintf("[Sample lyrics for %q by %s", title, artist)
	if year != "" {
		header += fmt.Sprintf(" (%s)", year)
	}
	if album != "" {
		header += fmt.Sprintf(" from %q", album)
	}
	header += "]"

	return fmt.Sprintf(`%s

%s

[Note: These are sample lyrics generated for %q by %s.
Real lyrics require additional API access.]`, header, sampleBody, title, artist)
}
