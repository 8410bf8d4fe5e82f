package blueprint

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/factoryd/internal/item"
)

const jsonDocument = `{
	"server_port": 1847,
	"min_cycle_time_secs": 1.5,
	"log_clients": ["monitor"],
	"bus_accesses": [{"client": "main", "addr": "bus_0"}],
	"fluid_bus_accesses": [{"client": "main", "fluid_bus_addrs": ["fbus_0"], "tank_addr": "tank_0"}],
	"fluid_bus_capacity": 16000,
	"storages": [
		{"type": "Chest", "accesses": [{"client": "main", "addr": "chest_0"}], "override_max_stack_size": 128},
		{"type": "Drawer", "accesses": [{"client": "main", "addr": "drawer_0"}],
		 "filters": [{"type": "Label", "value": "Cobblestone"}, {"type": "Custom", "desc": "nbt:abc"}]}
	],
	"processes": [
		{"type": "ManualUI", "accesses": [{"client": "main", "addr": "manual_0"}]},
		{"type": "Workbench", "name": "bench", "accesses": [{"client": "crafter", "addr": "turtle_0"}],
		 "recipes": [{
			"outputs": [{"type": "Label", "value": "Stick"}, {"item": {"type": "Name", "value": "minecraft:torch"}, "n_wanted": 64, "per_set": 4}],
			"inputs": [{"item": {"type": "Label", "value": "Plank"}, "slots": [{"slot": 0, "size": 1}, {"slot": 3, "size": 1}]}],
			"max_sets": 8
		 }]},
		{"type": "Slotted", "name": "furnace", "accesses": [{"client": "main", "addr": "furnace_0"}],
		 "input_slots": [0], "extract_filter": {"type": "Label", "value": "Charcoal"}, "strict_priority": true,
		 "recipes": [{"outputs": [], "inputs": [{"item": {"type": "Both", "label": "Oak Log", "name": "minecraft:oak_log"},
		   "slots": [{"slot": 0, "size": 1}], "allow_backup": true, "extra_backup": 8}], "max_sets": 16}]},
		{"type": "Turtle", "name": "miner", "file_name": "quarry", "client": "miner_1"},
		{"type": "RedstoneEmitter", "accesses": [{"client": "main", "addr": "relay_0", "side": "top"}],
		 "output_rules": [{"name": "low-coal", "off_signal": 0, "on_signal": 15, "trigger_items": [{"type": "Label", "value": "Coal"}], "bit": 3}]}
	],
	"backups": [{"client": "main", "addr": "backup_0"}],
	"fluid_backups": []
}`

func TestParse_JSONDocument(t *testing.T) {
	doc, err := Parse([]byte(jsonDocument))
	require.NoError(t, err)

	assert.Equal(t, 1847, doc.ServerPort)
	assert.Equal(t, 1500*time.Millisecond, doc.MinCycleTime())
	assert.Equal(t, []string{"monitor"}, doc.LogClients)
	assert.Equal(t, 16000, doc.FluidBusCapacity)
	require.Len(t, doc.Storages, 2)

	chest := doc.Storages[0].Chest
	require.NotNil(t, chest)
	require.NotNil(t, chest.OverrideMaxStackSize)
	assert.Equal(t, 128, *chest.OverrideMaxStackSize)

	drawer := doc.Storages[1].Drawer
	require.NotNil(t, drawer)
	require.Len(t, drawer.Filters, 2)
	f, err := drawer.Filters[1].ToFilter()
	require.NoError(t, err)
	assert.Equal(t, item.KindCustom, f.Kind())

	require.Len(t, doc.Processes, 5)
	assert.NotNil(t, doc.Processes[0].ManualUI)

	bench := doc.Processes[1].Workbench
	require.NotNil(t, bench)
	outputs := bench.Recipes[0].Outputs
	require.Len(t, outputs, 2)
	assert.Equal(t, FilterLabel, outputs[0].Item.Type, "bare filter output")
	assert.Zero(t, outputs[0].NWanted)
	assert.Equal(t, 64, outputs[1].NWanted)
	assert.Equal(t, 4, outputs[1].PerSet)

	furnace := doc.Processes[2].Slotted
	require.NotNil(t, furnace)
	assert.True(t, furnace.StrictPriority)
	require.NotNil(t, furnace.ExtractFilter)
	in := furnace.Recipes[0].Inputs[0]
	assert.True(t, in.AllowBackup)
	assert.Equal(t, 8, in.ExtraBackup)

	assert.Equal(t, "quarry", doc.Processes[3].Turtle.FileName)

	emitter := doc.Processes[4].RedstoneEmitter
	require.NotNil(t, emitter)
	require.NotNil(t, emitter.OutputRules[0].Bit)
	assert.Equal(t, 3, *emitter.OutputRules[0].Bit)
	assert.Equal(t, "top", emitter.Accesses[0].Side)
}

func TestParse_YAMLDocument(t *testing.T) {
	doc, err := Parse([]byte(`
server_port: 1847
min_cycle_time_secs: 2
bus_accesses:
  - {client: main, addr: bus_0}
storages:
  - type: Chest
    accesses: [{client: main, addr: chest_0}]
processes: []
`))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, doc.MinCycleTime())
	require.Len(t, doc.Storages, 1)
	assert.Nil(t, doc.Storages[0].Chest.OverrideMaxStackSize)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"empty", "", "empty document"},
		{"malformed json", `{"server_port": `, ""},
		{"unknown field", `{"server_prot": 1}`, "server_prot"},
		{"unknown storage type", `{"storages": [{"type": "Barrel", "accesses": []}]}`, "Barrel"},
		{"unknown process type", `{"processes": [{"type": "Smelter"}]}`, "Smelter"},
		{"bad port", `{"server_port": 70000}`, "server_port"},
		{"negative cycle", `{"min_cycle_time_secs": -1}`, "min_cycle_time_secs"},
		{"chest without access", `{"storages": [{"type": "Chest", "accesses": []}]}`, "at least one access"},
		{"drawer without filter", `{"storages": [{"type": "Drawer", "accesses": [{"client": "a", "addr": "b"}]}]}`, "filter"},
		{"bad filter", `{"storages": [{"type": "Drawer", "accesses": [{"client": "a", "addr": "b"}], "filters": [{"type": "Label"}]}]}`, "needs value"},
		{"unknown custom", `{"storages": [{"type": "Drawer", "accesses": [{"client": "a", "addr": "b"}], "filters": [{"type": "Custom", "desc": "???"}]}]}`, "custom predicate"},
		{"slot outside input_slots", `{"processes": [{"type": "Slotted", "name": "m", "accesses": [{"client": "a", "addr": "b"}], "input_slots": [0],
			"recipes": [{"inputs": [{"item": {"type": "Label", "value": "X"}, "slots": [{"slot": 2, "size": 1}]}], "max_sets": 1}]}]}`, "not an input slot"},
		{"signal out of range", `{"processes": [{"type": "RedstoneEmitter", "accesses": [{"client": "a", "addr": "b"}],
			"output_rules": [{"name": "r", "on_signal": 16, "trigger_items": [{"type": "Label", "value": "X"}]}]}]}`, "signals"},
		{"fluid without capacity", `{"fluid_bus_accesses": [{"client": "a", "tank_addr": "t"}]}`, "fluid_bus_capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig), "error %v should wrap ErrConfig", err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`{
		"server_port": -1,
		"bus_accesses": [{"client": "", "addr": "bus"}],
		"processes": [{"type": "Turtle", "name": "t"}]
	}`))
	require.Error(t, err)
	for _, want := range []string{"server_port", "bus_accesses[0]", "file_name"} {
		assert.True(t, strings.Contains(err.Error(), want), "missing %q in %v", want, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factory.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonDocument), 0600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1847, doc.ServerPort)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFilterToFilter(t *testing.T) {
	tests := []struct {
		in      Filter
		wantID  string
		wantErr bool
	}{
		{Filter{Type: FilterLabel, Value: "Stone"}, "label:Stone", false},
		{Filter{Type: FilterName, Value: "minecraft:stone"}, "name:minecraft:stone", false},
		{Filter{Type: FilterBoth, Label: "Stone", Name: "minecraft:stone"}, "both:Stone|minecraft:stone", false},
		{Filter{Type: FilterCustom, Desc: "any"}, "custom:any", false},
		{Filter{Type: FilterBoth, Label: "Stone"}, "", true},
		{Filter{Type: "Regex"}, "", true},
	}
	for _, tt := range tests {
		f, err := tt.in.ToFilter()
		if tt.wantErr {
			assert.Error(t, err, "%+v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.wantID, f.ID())
	}
}
