// Package cartos provides execution machinery for cartridges:
// portable bundles of a state machine, typed memory, and declared
// commands.
//
// The execution core is in package 'core', the multi-cartridge command
// router is in package 'router', and some command-line hosts are in
// 'cmd'.
package cartos
