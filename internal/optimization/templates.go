package optimization

// Template banks for generated titles and descriptions. %s receives the
// title-cased subject derived from the source material.
var titleTemplates = []string{
	"%s - You Won't Believe This Moment",
	"The Best Part of %s",
	"%s in 60 Seconds",
	"Watch This: %s",
	"%s - The Highlight",
}

var descriptionTemplates = []string{
	"The standout moment from %s. Full video on the channel.",
	"We clipped the best part of %s so you don't have to scrub for it.",
	"Highlights from %s, reframed for your feed.",
}

// Common English words excluded from keyword extraction.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "have": {}, "was": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "your": {}, "our": {}, "their": {}, "his": {}, "her": {},
	"its": {}, "out": {}, "all": {}, "how": {}, "what": {}, "when": {},
	"where": {}, "why": {}, "who": {}, "can": {}, "will": {}, "just": {},
	"into": {}, "over": {}, "about": {}, "more": {}, "some": {}, "then": {},
	"them": {}, "than": {}, "they": {}, "been": {}, "were": {}, "video": {},
}
