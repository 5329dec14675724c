// Package vm provides high-level multipass instance operations.
//
// A Manager sits on top of the executor and turns raw outcomes into the
// results callers need:
//   - Provision: the background body of a launch (launch, settle, fetch
//     info, record the result)
//   - List, ListDetailed, Info: parse the JSON multipass prints
//   - Control: start, stop, recover, delete and purge
//   - Version: the multipass version string
//
// Error Handling:
//
// A failed launch always resolves the lifecycle record to Error. When
// cleanup is enabled, the partially created instance is deleted and purged
// on a best-effort basis. Cleanup errors are logged but do not change the
// recorded outcome.
//
// Context Support:
//
// All operations accept a context.Context. Provision is normally called
// with a context detached from the request that started it, so only the
// create timeout bounds it.
package vm
