package discovery

import "regexp"

// fallbackKeywords keep search working when keyword generation fails or is
// unavailable. Multilingual on purpose: order channels are language-local.
var fallbackKeywords = []string{
	"freelance orders",
	"freelance jobs",
	"заказы фриланс",
	"фриланс заказы",
	"ищу разработчика",
	"ищу программиста",
	"web developer needed",
	"разработка заказы",
	"freelance developer",
	"замовлення фріланс",
	"trabajo freelance",
	"Freelance Aufträge",
	"commandes freelance",
	"pedidos freelance",
	"zlecenia freelance",
}

// Telegram public usernames are 5-32 chars starting with a letter.
var usernameRE = regexp.MustCompile(`@([A-Za-z]\w{4,31})`)

func extractUsernames(text string) []string {
	matches := usernameRE.FindAllStringSubmatch(text, -1)
	usernames := make([]string, 0, len(matches))
	for _, m := range matches {
		usernames = append(usernames, m[1])
	}
	return dedupe(usernames)
}

// dedupe drops repeats while keeping first-seen order.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}
