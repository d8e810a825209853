// Package consulkv provides a thin client for the Consul HTTP KV API with
// prefix scoping and retrieval of key subtrees as nested structures.
//
// Basic usage:
//
//	client, err := consulkv.New("http://localhost:8500", consulkv.WithPrefix("myapp"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// store a value
//	err = client.Set(ctx, "db/host", "db1.internal")
//
//	// retrieve a value
//	host, err := client.Get(ctx, "db/host")
//
//	// retrieve with default
//	host, err := client.GetOrDefault(ctx, "db/host", "localhost")
//
//	// delete a key
//	err = client.Delete(ctx, "db/host")
//
// Retrieving a subtree as a nested mapping:
//
//	tree, err := client.GetTree(ctx, "db")
//	// {"host": "db1.internal", "replica": {"host": "db2.internal"}}
//
// With authentication and a shorter deadline:
//
//	client, err := consulkv.New("http://localhost:8500",
//	    consulkv.WithToken("acl-token"),
//	    consulkv.WithTimeout(2*time.Second),
//	)
//
// Check-and-set for concurrent writers:
//
//	rec, err := client.GetRecord(ctx, "db/host")
//	ok, err := client.SetCAS(ctx, "db/host", "db3.internal", rec.ModifyIndex)
//
// Loading a configuration struct from a subtree:
//
//	var cfg struct {
//	    Host string `mapstructure:"host"`
//	    Port int    `mapstructure:"port"`
//	}
//	src := consulkv.Source{Client: client, Paths: []string{"db"}}
//	err = src.Load(ctx, &cfg)
//
// Every operation takes a context and performs a single HTTP round-trip,
// nothing is retried or cached inside the client.
package consulkv
