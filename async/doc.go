// Package async provides two race combinators: an operation against a deadline
// (WithTimeout) and the first success among independent attempts (FirstSuccess).
package async
