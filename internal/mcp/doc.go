// Package mcp implements MCP (Model Context Protocol) support on both
// sides of the wire: a client that connects to external MCP servers and
// bridges their tools into the local registry, and a server that exposes
// the local registry to other MCP hosts.
//
// MCP uses JSON-RPC 2.0 over two transports: stdio (subprocess) and
// streamable HTTP. The client discovers tools via tools/list and invokes
// them via tools/call. Discovered tools are bridged into loco's tool
// registry so they appear as native tools to the LLM.
package mcp
