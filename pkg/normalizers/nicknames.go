package normalizers

import "sort"

// formalNicknames lists common English given names and their familiar forms
var formalNicknames = map[string][]string{
	"abigail":     {"abby", "gail"},
	"alexander":   {"alex", "al", "xander", "sandy"},
	"alexandra":   {"alex", "alexa", "sandra", "sandy", "lexi"},
	"alfred":      {"al", "alf", "fred", "freddie"},
	"andrew":      {"andy", "drew"},
	"anthony":     {"tony", "ant"},
	"barbara":     {"barb", "babs", "barbie"},
	"benjamin":    {"ben", "benny", "benji"},
	"catherine":   {"cathy", "kate", "katie", "cat"},
	"charles":     {"charlie", "chuck", "chas", "chaz"},
	"christina":   {"chris", "tina", "chrissy"},
	"christopher": {"chris", "kit", "topher"},
	"daniel":      {"dan", "danny"},
	"david":       {"dave", "davey"},
	"deborah":     {"deb", "debbie", "debby"},
	"donald":      {"don", "donnie"},
	"dorothy":     {"dot", "dottie", "dolly"},
	"edward":      {"ed", "eddie", "ted", "teddy", "ned"},
	"elizabeth":   {"liz", "beth", "betty", "lizzie", "eliza", "betsy", "libby"},
	"eugene":      {"gene"},
	"frances":     {"fran", "frannie", "frankie"},
	"francis":     {"frank", "fran"},
	"frederick":   {"fred", "freddie", "rick"},
	"gerald":      {"gerry", "jerry"},
	"gregory":     {"greg"},
	"harold":      {"hal", "harry"},
	"henry":       {"hank", "harry", "hal"},
	"isabella":    {"bella", "izzy"},
	"jacob":       {"jake"},
	"james":       {"jim", "jimmy", "jamie"},
	"jennifer":    {"jen", "jenny", "jenn"},
	"jessica":     {"jess", "jessie"},
	"john":        {"jack", "johnny", "jon"},
	"jonathan":    {"jon", "jonny", "nathan"},
	"joseph":      {"joe", "joey"},
	"joshua":      {"josh"},
	"judith":      {"judy", "jude"},
	"katherine":   {"kathy", "kate", "katie", "kat", "kay"},
	"kathleen":    {"kathy", "kate", "kat"},
	"kenneth":     {"ken", "kenny"},
	"lawrence":    {"larry"},
	"leonard":     {"leo", "len", "lenny"},
	"margaret":    {"maggie", "meg", "peggy", "marge", "margie", "greta"},
	"matthew":     {"matt", "matty"},
	"michael":     {"mike", "mikey", "mick", "mickey"},
	"nicholas":    {"nick", "nicky", "nico"},
	"pamela":      {"pam"},
	"patricia":    {"pat", "patty", "trish", "tricia"},
	"patrick":     {"pat", "paddy", "rick"},
	"peter":       {"pete"},
	"philip":      {"phil"},
	"raymond":     {"ray"},
	"rebecca":     {"becky", "becca"},
	"richard":     {"rick", "ricky", "dick", "rich", "richie"},
	"robert":      {"bob", "bobby", "rob", "robbie", "bert"},
	"ronald":      {"ron", "ronnie"},
	"samantha":    {"sam", "sammy"},
	"samuel":      {"sam", "sammy"},
	"stephanie":   {"steph", "stephie"},
	"stephen":     {"steve", "stevie"},
	"steven":      {"steve", "stevie"},
	"susan":       {"sue", "susie", "suzy"},
	"theodore":    {"ted", "teddy", "theo"},
	"thomas":      {"tom", "tommy"},
	"timothy":     {"tim", "timmy"},
	"victoria":    {"vicky", "tori"},
	"virginia":    {"ginny", "ginger"},
	"walter":      {"walt", "wally"},
	"william":     {"will", "bill", "billy", "willy", "liam"},
	"zachary":     {"zach", "zack"},
}

// nicknameIndex is the bidirectional view of formalNicknames: formal names
// map to their nicknames and each nickname maps back to its formal names.
// Built at package initialization and never mutated.
var nicknameIndex = buildNicknameIndex(formalNicknames)

func buildNicknameIndex(table map[string][]string) map[string][]string {
	sets := make(map[string]map[string]bool)
	add := func(from, to string) {
		if from == to {
			return
		}
		if sets[from] == nil {
			sets[from] = make(map[string]bool)
		}
		sets[from][to] = true
	}

	for formal, nicks := range table {
		for _, nick := range nicks {
			add(formal, nick)
			add(nick, formal)
		}
	}

	index := make(map[string][]string, len(sets))
	for name, set := range sets {
		alts := make([]string, 0, len(set))
		for alt := range set {
			alts = append(alts, alt)
		}
		sort.Strings(alts)
		index[name] = alts
	}
	return index
}

// Nicknames returns the names related to a lowercase token, sorted
func Nicknames(token string) []string {
	return nicknameIndex[token]
}
