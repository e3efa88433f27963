// Package internal holds helpers private to authservice: session id
// generation and parsing. The audit sub-package owns event dispatch.
package internal
