// Package abuse handles complaints about names under the parent domain.
//
// Anyone may file a report; it is stored as new and posted to the review
// channel with suspend and ignore actions. Admins acknowledge, ignore or
// suspend it. Suspending deletes the reported name's record at the DNS
// provider and then in the store. Every state change is a compare-and-set on
// the report row, so two admins acting at once cannot both win.
package abuse
