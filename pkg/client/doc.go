// Package client is the filechain Go SDK.
//
// It wraps the filechain HTTP API: uploading files, listing and verifying
// the ledger, and fetching stored content by CID.
//
//	c, err := client.New("http://localhost:5000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	entry, err := c.Upload(ctx, "report.pdf", data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(entry.Index, entry.ContentID)
//
// # Verifying the ledger
//
// Verify returns false, not an error, when the server reports a broken chain:
//
//	ok, err := c.Verify(ctx)
//
// Content is immutable per CID, so Fetch results may be cached client-side
// with WithCacheTTL.
package client
