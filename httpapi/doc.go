// Package httpapi exposes the borrowing coordinator and the catalog over HTTP.
//
// Routes live under /api/v1:
//
//	POST /borrow/book           {"bookId", "borrowerId"}  borrow one copy
//	POST /borrow/book/return    {"id"}                    return a borrowed copy
//	GET  /borrow/book/list      ?status=&borrowerId=&bookId=
//	POST /book                  {"title", "quantity"}     register a title with its stock
//	GET  /book/:id/stock        current counters
//	GET  /book/:id/stock-log    audit entries
//	POST /borrower              {"membershipId", "name"}
//	GET  /borrower/:id
//
// Every response uses the envelope {"success", "message", "data"}. Rejected requests answer
// 400, infrastructure failures 500.
package httpapi
