// Package blueprint reads the factory document.
//
// The document declares the bus, storages, processes, recipes and backups
// of one factory. It is JSON or YAML (any JSON document is valid input) and
// uses "type" discriminators for its tagged unions:
//
//	{
//	  "server_port": 1847,
//	  "min_cycle_time_secs": 1,
//	  "bus_accesses": [{"client": "main", "addr": "minecraft:chest_0"}],
//	  "storages": [
//	    {"type": "Chest", "accesses": [{"client": "main", "addr": "minecraft:chest_1"}]},
//	    {"type": "Drawer", "accesses": [...], "filters": [{"type": "Label", "value": "Cobblestone"}]}
//	  ],
//	  "processes": [
//	    {"type": "Workbench", "name": "bench", "accesses": [...], "recipes": [...]}
//	  ]
//	}
//
// Load and Parse only check structure; a document that parses can still be
// rejected when the factory is built (duplicate addresses, bad max_sets).
// Every problem found here wraps ErrConfig.
package blueprint
