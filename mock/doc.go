// Package mock replaces the network in operation tests with canned
// responses chosen by rules.
//
// A rule matches operation inputs of one type and serves a bounded sequence
// of responses: an output, a modeled error or a raw HTTP response that goes
// through normal deserialization.
//
//	getItem := mock.On[GetItemInput, GetItemOutput]().
//	    Match(func(in GetItemInput) bool { return in.Key == "k1" }).
//	    Sequence().
//	    HTTPResponse(func() *sdkhttp.Response { return sdkhttp.NewResponse(503, nil) }).Times(2).
//	    Output(func() GetItemOutput { return GetItemOutput{Value: "v"} }).
//	    Build()
//
//	client := mock.NewClient(mock.Sequential, getItem)
//	client.Configure(layer)
//
// The client is both the connection and an interceptor. Each attempt,
// retries included, consumes one response. An exhausted rule is never served
// again: in Sequential mode it stays in place and is skipped, in MatchAny
// mode it is dropped.
package mock
