// Package client is the Go SDK for the lostfound ledger server.
//
// # Reporting an item
//
// Start a session first; the client keeps the returned token:
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := c.StartSession(ctx, "ana", "ana@example.com"); err != nil {
//	    log.Fatal(err)
//	}
//	entry, err := c.ReportItem(ctx, client.ItemRequest{
//	    Kind:     "lost",
//	    Title:    "Wallet",
//	    Location: "Library",
//	})
//
// Set ItemRequest.ImagePath to upload a photo as multipart form data.
//
// # Auditing
//
// Chain returns every entry, genesis first. Verify returns the server's
// verdict on chain integrity; a broken chain is reported in the result, not
// as an error. Rechain needs the operator secret:
//
//	admin, _ := client.New(base, client.WithAdminSecret(secret))
//	n, err := admin.Rechain(ctx)
//
// Non-2xx responses are returned as *APIError. IsNotFound and IsForbidden
// test for the common cases.
package client
