// Package netclient builds the HTTP clients used to reach monitored domains
// and external collaborators.
//
// Every outbound request of driftwatch goes through a Client so that the
// timeout, the redirect policy, the User-Agent and the optional SOCKS5 egress
// proxy are applied uniformly. The package also classifies network errors as
// transient or conclusive and provides the single-retry helper used by the
// link validator and the content fetchers.
package netclient
