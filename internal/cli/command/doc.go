// Package command assembles the epicenterctl command tree: one-shot
// filesystem and key-value operations against a local workspace data
// directory, built on urfave/cli.
//
// Every workspace command opens the workspace (restoring it through the
// persistence extension), runs a single operation, and tears the
// workspace down again, so the on-disk state is always consistent between
// runs. The token and version commands do not open a workspace.
package command
