package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by every HTTP module mounted by the application.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}

// PathRedactor is implemented by handlers whose routes carry credentials in
// the path. The segment after each prefix is masked in logs.
type PathRedactor interface {
	RedactedPathPrefixes() []string
}
