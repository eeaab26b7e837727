// Package natsclient manages the NATS connection backing the document
// store and the embedding cache.
//
// The client wraps the standard NATS Go client with automatic reconnection,
// connection-state tracking, and JetStream Key-Value bucket management. It
// is the single place in the codebase that dials NATS; the metastore and
// the embedding cache both receive their buckets from here.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222")
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
//	    Bucket: "CATALOG_PRODUCTS",
//	})
package natsclient
