package library

import (
	"context"
	"log/slog"
)

// InitializeFromData adds every book and registers every user independently, in input
// order. A failing record is counted and described in Failures; it never aborts the batch.
// Once ctx is done the remaining records are recorded as failed with ctx's error.
func (l *Library) InitializeFromData(ctx context.Context, books []BookInput, users []UserInput) ImportResult {
	var res ImportResult

	for i, in := range books {
		err := ctx.Err()
		if err == nil {
			_, err = l.AddBook(in)
		}
		if err != nil {
			res.FailedBooks++
			res.Failures = append(res.Failures, ImportFailure{Kind: "book", Index: i, Key: in.ISBN, Err: err})
			continue
		}
		res.AddedBooks++
	}

	for i, in := range users {
		err := ctx.Err()
		if err == nil {
			_, err = l.RegisterUser(in)
		}
		if err != nil {
			res.FailedUsers++
			res.Failures = append(res.Failures, ImportFailure{Kind: "user", Index: i, Key: in.Email, Err: err})
			continue
		}
		res.AddedUsers++
	}

	l.log.Info("import finished",
		slog.Int("added_books", res.AddedBooks),
		slog.Int("failed_books", res.FailedBooks),
		slog.Int("added_users", res.AddedUsers),
		slog.Int("failed_users", res.FailedUsers),
	)
	return res
}
