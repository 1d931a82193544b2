// Package dnscheck verifies CNAME delegation for domain control validation.
//
// A tenant proves control over a domain by publishing a single CNAME record
// at _acme-challenge.<domain> pointing at the platform's validation
// infrastructure. The checker resolves that record through a public
// DNS-over-HTTPS resolver and compares the answer with the expected
// delegation target.
//
// The check is a pure query-and-compare operation: it never mutates state
// and leaves retry decisions to the caller.
//
//	checker, err := dnscheck.New(dnscheck.Config{
//		ResolverURL: "https://cloudflare-dns.com/dns-query",
//		Timeout:     10 * time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := checker.CheckDelegation(ctx, "example.com", "abc.validator.certella.net")
//	if err != nil {
//		// transport failure, retry later
//	}
//	if !result.Success {
//		// result.Error explains what the tenant must fix
//	}
package dnscheck
