package feeds

// FeedSource is one editorial RSS/Atom endpoint.
type FeedSource struct {
	URL  string `mapstructure:"url" yaml:"url"`
	Name string `mapstructure:"name" yaml:"name"`
	Tag  Tag    `mapstructure:"tag" yaml:"tag"`
}

// DefaultFeedSources is the curated feed list, grouped by dashboard lane.
var DefaultFeedSources = []FeedSource{
	// ============================================
	// BREAKING (wire services and regional wires)
	// ============================================
	{URL: "https://www.iranintl.com/en/feed", Name: "Iran Intl", Tag: TagBreaking},
	{URL: "https://news.google.com/rss/search?q=iran+war+OR+iran+strike+OR+tehran+OR+irgc+OR+hormuz+OR+khamenei+OR+regime+change+iran&hl=en&gl=US&ceid=US:en", Name: "Google News", Tag: TagBreaking},
	{URL: "https://feeds.reuters.com/reuters/worldNews", Name: "Reuters", Tag: TagBreaking},
	{URL: "https://www.aljazeera.com/xml/rss/all.xml", Name: "Al Jazeera", Tag: TagBreaking},

	// ============================================
	// REGIONAL
	// ============================================
	{URL: "https://www.middleeasteye.net/rss", Name: "Middle East Eye", Tag: TagRegional},
	{URL: "https://www.timesofisrael.com/feed/", Name: "Times of Israel", Tag: TagRegional},
	{URL: "https://www.jpost.com/rss/rssfeedsmiddleeast", Name: "Jerusalem Post", Tag: TagRegional},

	// ============================================
	// OSINT / ANALYSIS
	// ============================================
	{URL: "https://www.bellingcat.com/feed/", Name: "Bellingcat", Tag: TagOSINT},
	{URL: "https://breakingdefense.com/feed/", Name: "Breaking Defense", Tag: TagAnalysis},
	{URL: "https://warontherocks.com/feed/", Name: "War on the Rocks", Tag: TagAnalysis},
}

// DefaultKeywords is the topical keyword set shared by feed and market
// filtering.
var DefaultKeywords = []string{
	"iran", "tehran", "irgc", "khamenei", "hormuz", "hezbollah",
	"persian gulf", "nuclear", "natanz", "fordow", "middle east strike",
	"houthi", "strait", "regime change", "isfahan", "karaj", "parchin",
	"qom", "arabian sea", "red sea", "iran war", "iran conflict",
	"iran us", "iran israel", "iran attack", "epic fury", "lion's roar",
	"iranian regime", "iranian military", "tehran strike", "iran nuclear",
	"cruise missile iran", "ballistic missile iran", "irgc quds",
	"hezbollah attack", "strait of hormuz", "persian gulf war",
	"iran sanctions", "iran deal", "jcpoa", "enrichment", "centrifuge",
	"rouhani", "raisi", "pezeshkian", "iran president", "revolutionary guard",
}

// DefaultMarketDenyPatterns reject placeholder and template-artifact market
// titles. Patterns run against the lower-cased title.
var DefaultMarketDenyPatterns = []string{
	`\.\.\.\?`,   // "US next strikes Iran on...?"
	`…\?`,        // same with a unicode ellipsis
	`â€¦\?`,      // same, mis-decoded upstream
	`\bover__\b`, // unfilled template slot
}
