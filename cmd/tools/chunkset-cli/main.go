package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/config"
	"github.com/annel0/chunkloader/internal/storage_adapter"
	"github.com/annel0/chunkloader/internal/storage_interface"
)

const usage = `chunkset-cli — обслуживание сохранённых наборов чанков

Использование:
  chunkset-cli [-config path] <команда> [флаги]

Команды:
  list                         список миров
  dump   -world W              координаты мира
  add    -world W -x X -z Z    добавить чанк
  remove -world W -x X -z Z    удалить чанк
  export -world W -out FILE    выгрузить NBT (gzip)
  import -world W -in FILE     заменить набор содержимым NBT файла
  delete -world W              удалить мир из хранилища
`

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или CHUNKLOADER_CONFIG)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	provider, err := storage_adapter.NewProvider(cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cli := &CLI{
		provider: provider,
		codec:    storage_adapter.CodecFromConfig(cfg.Storage),
		out:      os.Stdout,
	}
	if err := cli.Run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		provider.Close()
		log.Fatalf("❌ %v", err)
	}
}

// CLI выполняет команды над хранилищем наборов
type CLI struct {
	provider storage_interface.SetProvider
	codec    storage_adapter.SetCodec
	out      io.Writer
}

// ErrUnknownCommand неизвестная команда
var ErrUnknownCommand = errors.New("неизвестная команда")

// Run разбирает флаги команды и выполняет её
func (c *CLI) Run(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	worldName := fs.String("world", "", "имя мира")
	x := fs.Int("x", 0, "координата X чанка")
	z := fs.Int("z", 0, "координата Z чанка")
	in := fs.String("in", "", "входной NBT файл")
	out := fs.String("out", "", "выходной NBT файл")
	if err := fs.Parse(args); err != nil {
		return err
	}

	needWorld := command != "list"
	if needWorld && *worldName == "" {
		return fmt.Errorf("%s: требуется -world", command)
	}

	switch command {
	case "list":
		return c.list(ctx)
	case "dump":
		return c.dump(ctx, *worldName)
	case "add", "remove":
		cx, cz, err := chunkCoords(*x, *z)
		if err != nil {
			return err
		}
		return c.edit(ctx, *worldName, cx, cz, command == "add")
	case "export":
		if *out == "" {
			return fmt.Errorf("export: требуется -out")
		}
		return c.export(ctx, *worldName, *out)
	case "import":
		if *in == "" {
			return fmt.Errorf("import: требуется -in")
		}
		return c.importFile(ctx, *worldName, *in)
	case "delete":
		return c.provider.DeleteSet(ctx, *worldName)
	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, command)
	}
}

func chunkCoords(x, z int) (int32, int32, error) {
	cx, cz := int32(x), int32(z)
	if int(cx) != x || int(cz) != z {
		return 0, 0, fmt.Errorf("координаты (%d,%d) вне диапазона int32", x, z)
	}
	return cx, cz, nil
}

func (c *CLI) list(ctx context.Context) error {
	worlds, err := c.provider.ListSets(ctx)
	if err != nil {
		return err
	}
	for _, name := range worlds {
		set, _, err := c.provider.LoadSet(ctx, name)
		if err != nil {
			fmt.Fprintf(c.out, "%s\t<ошибка: %v>\n", name, err)
			continue
		}
		fmt.Fprintf(c.out, "%s\t%d\n", name, set.Len())
	}
	return nil
}

// load загружает набор; отсутствующий мир даёт пустой набор
func (c *CLI) load(ctx context.Context, worldName string) (*chunk.Set, bool, error) {
	set, found, err := c.provider.LoadSet(ctx, worldName)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return chunk.NewSet(worldName), false, nil
	}
	return set, true, nil
}

func (c *CLI) dump(ctx context.Context, worldName string) error {
	set, found, err := c.load(ctx, worldName)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("мир %q не найден", worldName)
	}
	for _, coord := range set.Coords() {
		fmt.Fprintf(c.out, "%d\t%d\n", coord.X, coord.Z)
	}
	return nil
}

func (c *CLI) edit(ctx context.Context, worldName string, x, z int32, add bool) error {
	set, _, err := c.load(ctx, worldName)
	if err != nil {
		return err
	}

	var changed bool
	if add {
		changed = set.Add(x, z)
	} else {
		changed = set.Remove(x, z)
	}
	if !changed {
		fmt.Fprintf(c.out, "без изменений: %s (%d,%d)\n", worldName, x, z)
		return nil
	}

	if err := c.provider.SaveSet(ctx, set); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "сохранено: %s, чанков %d\n", worldName, set.Len())
	return nil
}

func (c *CLI) export(ctx context.Context, worldName, path string) error {
	set, found, err := c.load(ctx, worldName)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("мир %q не найден", worldName)
	}

	data, err := storage_adapter.DefaultCodec.Encode(set)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "выгружено: %s → %s (%d байт)\n", worldName, path, len(data))
	return nil
}

func (c *CLI) importFile(ctx context.Context, worldName, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	set, err := c.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	set.SetName(worldName)

	if err := c.provider.SaveSet(ctx, set); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "загружено: %s ← %s, чанков %d\n", worldName, path, set.Len())
	return nil
}
