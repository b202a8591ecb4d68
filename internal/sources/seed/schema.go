package seed

// File is the top-level structure of the saved-query seed file. Like a
// grouped dashboard config, it is a list of single-key maps: the key is the
// category and the value lists the queries in that category:
//
//	---
//	- Roads:
//	    - keyword: асфальт
//	    - keyword: ремонт дорог
//	      active: false
type File []map[string][]Entry

// Entry is one saved query in the seed file.
type Entry struct {
	Keyword string `yaml:"keyword"`
	Active  *bool  `yaml:"active,omitempty"`
}
