// Package recipe decides how many sets of a recipe a process can run.
//
// A Recipe lists SlottedInputs (an item filter, the machine slots it goes
// to and how many per slot), Outputs that gate whether the recipe is worth
// running, and max_sets. Match resolves every input to one concrete item
// type, then takes the smallest of:
//
//   - max_sets, minus sets already loaded in the machine
//   - for each item type: usable stock divided by what one set consumes,
//     where usable stock excludes backup reserves unless every input using
//     the type allows backup, in which case reserve above extra_backup counts
//   - for each slot: the stack room left in it divided by the per-set amount
//   - the output deficit, when outputs declare a wanted amount
//
// The recipe fires only when that minimum is at least one. Non-consumable
// inputs must be present but do not scale with sets and are not consumed.
package recipe
