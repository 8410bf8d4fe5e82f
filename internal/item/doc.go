// Package item describes the things a factory moves around.
//
// An item type is identified by its Key, the content signature reported by a
// remote inventory listing (registry name plus an NBT hash). Human-facing
// metadata such as the display label and the maximum stack size lives in a
// Detail, which is expensive to query and therefore memoised by the
// detailcache package.
//
// Filters select item types. A Filter is a closed set of variants:
//
//	Label("Iron Ingot")              exact display label
//	Name("minecraft:iron_ingot")     exact registry name
//	Both("Iron Ingot", "...")        label and name
//	Custom("nbt:abc", pred)          arbitrary predicate, identified by its description
//
// Two Custom filters are equal when their descriptions are equal, regardless
// of the predicate they carry.
package item
