// Package storage provides the page sinks of the security events connector.
//
// Each fetched page is handed to a PageStore under the name
// "<prefix>_<page index>". Two backends exist:
//   - FileStore writes <dir>/<name>.json with a temporary file and rename,
//     overwriting any previous file of the same name
//   - RedisStore sets <key_prefix><name> with an optional TTL
//
// Usage:
//
//	store, err := storage.New(ctx, cfg.Output)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.SavePage(ctx, "run1_list_events_1", data)
package storage
