package trending

// stopwords 虚词、泛化的新闻/商业/时间词以及网页残留，不参与计数
var stopwords = toSet(
	// 虚词
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her", "was", "one", "our",
	"out", "his", "has", "how", "its", "may", "new", "now", "old", "see", "two", "way", "who", "did", "get",
	"got", "him", "let", "own", "say", "she", "too", "use", "via", "yet", "also", "been", "from", "have",
	"here", "into", "just", "like", "more", "most", "much", "must", "only", "over", "some", "such", "than",
	"that", "them", "then", "they", "this", "very", "what", "when", "will", "with", "your", "about", "after",
	"again", "being", "could", "does", "doing", "down", "each", "even", "ever", "every", "few", "further",
	"into", "itself", "less", "many", "might", "other", "ought", "same", "should", "since", "still",
	"their", "theirs", "there", "these", "those", "through", "under", "until", "upon", "were", "where",
	"which", "while", "whom", "whose", "why", "would", "yours", "because", "before", "below", "between",
	"both", "during", "above", "against", "among", "around", "across", "along", "already", "although",
	"always", "another", "anything", "became", "become", "becomes", "behind", "beyond", "either", "else",
	"enough", "however", "instead", "later", "maybe", "nothing", "often", "perhaps", "rather", "something",
	"though", "together", "toward", "towards", "within", "without", "using", "used", "make", "makes",
	"made", "take", "takes", "took", "come", "comes", "came", "goes", "going", "gone", "know", "known",
	"want", "wants", "need", "needs", "says", "said", "told", "tell", "tells", "look", "looks", "seem",
	"seems", "give", "gives", "given", "put", "puts", "keep", "keeps", "back", "well", "good", "best",
	"better", "big", "biggest", "great", "high", "higher", "long", "low", "lower", "many", "next", "last",
	"first", "second", "third", "part", "set", "sets", "way", "ways", "thing", "things", "lot", "lots",
	"really", "several", "whether", "able", "amid", "onto", "per", "off", "our", "ours", "we", "us",

	// 时间
	"today", "tonight", "yesterday", "tomorrow", "week", "weeks", "weekly", "month", "months", "monthly",
	"year", "years", "yearly", "day", "days", "daily", "hour", "hours", "minute", "minutes", "time", "times",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "morning", "evening",
	"night", "recent", "recently", "latest", "early", "earlier", "late", "soon", "ago", "january",
	"february", "march", "april", "june", "july", "august", "september", "october", "november", "december",

	// 泛化的新闻/商业词
	"news", "report", "reports", "reported", "reporting", "according", "update", "updates", "updated",
	"breaking", "live", "story", "stories", "article", "articles", "people", "world", "says", "new",
	"company", "companies", "business", "percent", "million", "billion", "trillion", "announced",
	"announces", "announce", "launch", "launches", "launched", "plan", "plans", "show", "shows", "showed",
	"top", "key", "major", "latest", "official", "officials", "statement", "source", "sources",
	"analysis", "opinion", "editor", "editorial", "week", "via", "inc", "ltd", "corp", "group",

	// 网页残留
	"http", "https", "www", "com", "org", "net", "html", "htm", "href", "img", "src", "nbsp", "amp",
	"quot", "div", "span", "class", "style", "link", "links", "click", "read", "more", "continue",
	"continued", "subscribe", "newsletter", "post", "posted", "appeared", "first", "share", "shares",
	"comments", "comment", "email", "video", "photo", "photos", "image", "images", "feed", "rss",
	"website", "site", "page", "pages", "copyright", "reserved", "rights", "cookie", "cookies",
)

// genericPatterns 候选短语只要包含其中任一子串即被丢弃
var genericPatterns = []string{
	"click here",
	"read more",
	"read full",
	"full story",
	"continue reading",
	"sign up",
	"find out",
	"learn more",
	"find more",
	"more info",
	"the post",
	"appeared first",
	"all rights",
	"terms of",
	"privacy policy",
	"related content",
	"watch live",
	"listen now",
	"free trial",
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}
