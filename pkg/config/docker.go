package config

import (
	"net"
	"net/url"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv file which exists in all Docker containers.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker returns host.docker.internal for loopback hosts when
// running in Docker, so a Neo4j or Redis on the host machine stays reachable.
// Otherwise, returns the original host unchanged.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if inDocker && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}

// ResolveURIForDocker applies ResolveHostForDocker to the host of a URI such as bolt://localhost:7687.
func ResolveURIForDocker(uri string) string {
	return resolveURI(uri, IsRunningInDocker())
}

func resolveURI(uri string, inDocker bool) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	host := resolveHost(u.Hostname(), inDocker)
	if host == u.Hostname() {
		return uri
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String()
}

// ResolveAddrForDocker applies ResolveHostForDocker to a host:port address.
func ResolveAddrForDocker(addr string) string {
	return resolveAddr(addr, IsRunningInDocker())
}

func resolveAddr(addr string, inDocker bool) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return net.JoinHostPort(resolveHost(host, inDocker), port)
}
