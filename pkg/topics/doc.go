// Package topics maps logical feed topics to exchange channel paths.
//
// A topic such as "ticker" plus its symbols resolves to a Descriptor holding
// the channel path sent in subscribe frames and whether the channel is
// private (needs a signed connection token) or public.
package topics
