package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/HIDRA/internal/configpaths"
	"github.com/Alia5/HIDRA/internal/profilestore"
	"github.com/Alia5/HIDRA/internal/util"
	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/profile"
	"github.com/Alia5/HIDRA/transport"
)

func openStore() (*profilestore.Store, error) {
	dir, err := configpaths.ProfilesDir()
	if err != nil {
		return nil, err
	}
	return profilestore.New(dir)
}

// ProfileCmd groups profile management subcommands.
type ProfileCmd struct {
	List   ProfileList   `cmd:"" help:"List stored profiles"`
	Load   ProfileLoad   `cmd:"" help:"Print a stored profile"`
	Create ProfileCreate `cmd:"" help:"Create a new profile"`
	Delete ProfileDelete `cmd:"" help:"Delete a profile"`
}

type ProfileList struct{}

func (p *ProfileList) Run(logger *slog.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	profiles, err := store.LoadAll()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("no profiles")
		return nil
	}
	for _, pr := range profiles {
		fmt.Printf("%-20s v%d  %d mappings\n", pr.Name, pr.Version, len(pr.Mappings))
	}
	return nil
}

type ProfileLoad struct {
	Name string `arg:"" help:"Profile name"`
}

func (p *ProfileLoad) Run(logger *slog.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	pr, err := store.Load(p.Name)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(&pr)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

type ProfileCreate struct {
	Name     string `arg:"" help:"Profile name"`
	Vendor   string `help:"Bind to a vendor id (hex)"`
	Product  string `help:"Bind to a product id (hex)"`
	Defaults bool   `help:"Seed the profile with the default mappings"`
}

func (p *ProfileCreate) Run(logger *slog.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	exists, err := store.Exists(p.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", profile.ErrAlreadyExists, p.Name)
	}

	pr := profile.Profile{Name: p.Name, Version: profile.CurrentVersion}
	if p.Defaults {
		pr.Mappings = profile.Default().Mappings
	}
	if p.Vendor != "" || p.Product != "" {
		id, err := parseIdentity(p.Vendor, p.Product)
		if err != nil {
			return err
		}
		pr.DeviceID = id
	}
	if err := store.Save(pr); err != nil {
		return err
	}
	fmt.Printf("created profile %s\n", p.Name)
	return nil
}

type ProfileDelete struct {
	Name  string `arg:"" help:"Profile name"`
	Force bool   `help:"Skip the confirmation prompt"`
}

func (p *ProfileDelete) Run(logger *slog.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if !p.Force && util.IsInteractive() {
		fmt.Printf("delete profile %q? [y/N] ", p.Name)
		var answer string
		_, _ = fmt.Scanln(&answer)
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Println("aborted")
			return nil
		}
	}
	if err := store.Delete(p.Name); err != nil {
		return err
	}
	fmt.Printf("deleted profile %s\n", p.Name)
	return nil
}

// Map binds a controller button identifier to a key code in a profile.
type Map struct {
	Profile  string `arg:"" help:"Profile name"`
	Button   string `arg:"" help:"Button identifier (A, B, LShoulder, DPadUp, LSX+, ...)"`
	KeyCode  string `arg:"" help:"Host key code (decimal or 0x hex); 0 unmaps"`
	Modifier string `help:"Modifier: none, command, control, option, shift" default:"none"`
}

func (m *Map) Run(logger *slog.Logger) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	pr, err := store.Load(m.Profile)
	if err != nil {
		return err
	}

	code, err := parseKeyCode(m.KeyCode)
	if err != nil {
		return err
	}
	mod, err := output.ParseModifier(m.Modifier)
	if err != nil {
		return fmt.Errorf("%w: %v", profile.ErrInvalidMapping, err)
	}

	pr.SetMapping(profile.ButtonMapping{Button: m.Button, KeyCode: code, Modifier: mod})
	if err := store.Save(pr); err != nil {
		return err
	}
	fmt.Printf("%s: %s -> %d (%s)\n", m.Profile, m.Button, code, mod)
	return nil
}

func parseKeyCode(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), base(s), 16)
	if err != nil {
		return 0, fmt.Errorf("%w: bad key code %q", profile.ErrInvalidMapping, s)
	}
	return uint16(v), nil
}

func base(s string) int {
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		return 16
	}
	return 10
}

func parseIdentity(vendor, product string) (*transport.DeviceIdentity, error) {
	id := &transport.DeviceIdentity{}
	if vendor != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(vendor, "0x"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("bad vendor id %q", vendor)
		}
		id.VendorID = uint16(v)
	}
	if product != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(product, "0x"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("bad product id %q", product)
		}
		id.ProductID = uint16(v)
	}
	return id, nil
}
