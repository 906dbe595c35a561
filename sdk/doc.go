// Package sdk assembles the runtime pieces into a client.
//
// A Config (usually loaded with Load) becomes a Client whose frozen base
// layer carries the HTTP connection, retry strategy, timeouts, stalled
// stream and checksum interceptors, invocation ID and attempt headers, a
// no-auth default, the trace probe and the logger. Service code describes
// each call as an Operation and invokes it against a bag from the client:
//
//	client, err := sdk.New(cfg)
//	getItem := sdk.Operation[GetItemInput, GetItemOutput]{
//	    Service:      "items",
//	    Name:         "GetItem",
//	    Serializer:   serializeGetItem,
//	    Deserializer: deserializeGetItem,
//	}
//	out, err := getItem.Invoke(ctx, client.ConfigBag(), in)
package sdk
