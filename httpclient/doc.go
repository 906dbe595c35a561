// Package httpclient is the default sdkhttp.Connection: a net/http
// transport whose connections come from a connector.Connector, so proxy
// rules and TLS settings are decided once and shared by every request.
//
//	client, err := httpclient.New(httpclient.Config{
//	    ReadTimeout: 10 * time.Second,
//	    Connector: connector.Config{
//	        Proxy: connector.ProxyConfig{FromEnvironment: true},
//	    },
//	})
//	orchestrator.SetConnection(layer, client)
//
// Redirects are not followed. Response bodies stream: they stay readable
// after Call returns and are cancelled by the context passed to each read.
// Transport failures are returned as *Error values classified by Code.
package httpclient
