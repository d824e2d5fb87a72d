package config

import "github.com/roelfdiedericks/wabot/internal/upstream"

// API names used by the command handlers
const (
	APIWeather   = "weather"
	APILyrics    = "lyrics"
	APIDefine    = "define"
	APIWiki      = "wiki"
	APIImage     = "image"
	APITranslate = "translate"
	APIJoke      = "joke"
	APIQuote     = "quote"
	APITikTok    = "tiktok"
	APIInstagram = "instagram"
	APIFacebook  = "facebook"
	APIYTAudio   = "ytmp3"
	APIYTVideo   = "ytmp4"
)

// DefaultAPIs returns the built-in endpoint table. Every extract expression
// yields the flat object the matching handler decodes; settings files may
// replace any entry as long as they keep that shape.
func DefaultAPIs() map[string]upstream.Endpoint {
	return map[string]upstream.Endpoint{
		APIWeather: {
			URL:     "https://api.openweathermap.org/data/2.5/weather?q={query}&appid={key}&units=metric",
			Extract: `{city: .name, country: .sys.country, temp: .main.temp, feelsLike: .main.feels_like, humidity: .main.humidity, wind: .wind.speed, description: .weather[0].description}`,
		},
		APILyrics: {
			URL:     "https://lrclib.net/api/search?q={query}",
			Extract: `.[0] | {title: .trackName, artist: .artistName, lyrics: .plainLyrics}`,
			Fallbacks: []upstream.Endpoint{{
				URL:     "https://some-random-api.com/others/lyrics?title={query}",
				Extract: `{title: .title, artist: .author, lyrics: .lyrics}`,
			}},
		},
		APIDefine: {
			URL:     "https://api.dictionaryapi.dev/api/v2/entries/en/{query}",
			Extract: `.[0] | {word: .word, phonetic: (.phonetic // ""), meanings: [.meanings[] | {partOfSpeech: .partOfSpeech, definition: .definitions[0].definition}]}`,
			Fallbacks: []upstream.Endpoint{{
				URL:     "https://api.urbandictionary.com/v0/define?term={query}",
				Extract: `.list[0] | {word: .word, phonetic: "", meanings: [{partOfSpeech: "slang", definition: .definition}]}`,
			}},
		},
		APIWiki: {
			URL:     "https://en.wikipedia.org/api/rest_v1/page/summary/{query}",
			Extract: `{title: .title, extract: .extract, html: (.extract_html // ""), url: .content_urls.desktop.page}`,
		},
		APIImage: {
			URL:     "https://api.unsplash.com/search/photos?query={query}&per_page=5&client_id={key}",
			Extract: `{urls: [.results[].urls.regular]}`,
		},
		APITranslate: {
			URL:     "https://translate.googleapis.com/translate_a/single?client=gtx&sl=auto&tl={to}&dt=t&q={query}",
			Extract: `{text: ([.[0][][0]] | join("")), source: .[2]}`,
			Fallbacks: []upstream.Endpoint{{
				URL:     "https://api.mymemory.translated.net/get?q={query}&langpair=en|{to}",
				Extract: `{text: .responseData.translatedText, source: "en"}`,
			}},
		},
		APIJoke: {
			URL:     "https://official-joke-api.appspot.com/random_joke",
			Extract: `{setup: .setup, punchline: .punchline}`,
			Fallbacks: []upstream.Endpoint{{
				URL:     "https://v2.jokeapi.dev/joke/Any?type=twopart&safe-mode",
				Extract: `{setup: .setup, punchline: .delivery}`,
			}},
		},
		APIQuote: {
			URL:     "https://zenquotes.io/api/random",
			Extract: `.[0] | {text: .q, author: .a}`,
			Fallbacks: []upstream.Endpoint{{
				URL:     "https://dummyjson.com/quotes/random",
				Extract: `{text: .quote, author: .author}`,
			}},
		},
		APITikTok: {
			URL:     "https://www.tikwm.com/api/?url={query}&hd=1",
			Extract: `.data | {title: .title, urls: [.play], audio: .music}`,
		},
		APIInstagram: {
			URL:     "https://api.siputzx.my.id/api/d/igdl?url={query}",
			Extract: `{title: "", urls: [.data[].url]}`,
		},
		APIFacebook: {
			URL:     "https://api.siputzx.my.id/api/d/facebook?url={query}",
			Extract: `.data | {title: (.title // ""), urls: [(.hd // .sd // .url)]}`,
		},
		APIYTAudio: {
			URL:     "https://api.siputzx.my.id/api/d/ytmp3?url={query}",
			Extract: `.data | {title: .title, urls: [.dl]}`,
		},
		APIYTVideo: {
			URL:     "https://api.siputzx.my.id/api/d/ytmp4?url={query}",
			Extract: `.data | {title: .title, urls: [.dl]}`,
		},
	}
}
