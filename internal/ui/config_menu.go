package ui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"
	"github.com/diogo/perplexity-web-api-go/internal/config"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
)

// customKeyMap returns a keymap that includes ESC as a quit key.
func customKeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "back"),
	)
	return km
}

// ConfigMenuItem represents a configuration option in the menu.
type ConfigMenuItem struct {
	Key         string
	Label       string
	Description string
	Value       string
}

var menuLabels = map[string][2]string{
	"default_mode":     {"Mode", "Default search mode"},
	"default_model":    {"Model", "Default model for the mode"},
	"default_language": {"Language", "Response language (e.g., en-US)"},
	"default_sources":  {"Sources", "Search sources"},
	"streaming":        {"Streaming", "Print answers as they arrive"},
	"incognito":        {"Incognito", "Ask in incognito, skip history"},
	"cookie_file":      {"Cookie file", "Path to cookies file"},
	"history_file":     {"History file", "Path to history file"},
	"threads_file":     {"Threads file", "Path to follow-up threads database"},
	"log_level":        {"Log level", "debug, info, warn or error"},
	"log_format":       {"Log format", "console or json"},
	"timeouts.session": {"Session timeout", "Seconds for the session warm-up"},
	"timeouts.query":   {"Query timeout", "Seconds to wait for the answer stream"},
	"timeouts.upload":  {"Upload timeout", "Seconds for upload negotiation"},
	"timeouts.storage": {"Storage timeout", "Seconds for the storage transfer"},
}

// RunInteractiveConfig displays an interactive configuration menu. Edits
// apply to cfg; nothing is written until the user picks save.
func RunInteractiveConfig(cfg *config.Config, cfgMgr *config.Manager) error {
	for {
		items := buildConfigMenuItems(cfg)

		options := make([]huh.Option[string], 0, len(items)+2)
		for _, item := range items {
			label := fmt.Sprintf("%-18s %s", item.Label, DimStyle.Render(item.Value))
			options = append(options, huh.NewOption(label, item.Key))
		}
		options = append(options,
			huh.NewOption(SuccessStyle.Render("Save and exit"), "save"),
			huh.NewOption(WarningStyle.Render("Reset to defaults"), "reset"),
		)

		var selected string
		selectForm := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Configuration").
					Description("Select an option to modify").
					Options(options...).
					Value(&selected),
			),
		)

		if err := selectForm.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}

		switch selected {
		case "save":
			if err := cfgMgr.Save(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Println(SuccessStyle.Render("Configuration saved!"))
			return nil

		case "reset":
			if err := handleReset(cfg, cfgMgr.Defaults()); err != nil {
				return err
			}

		default:
			if err := handleConfigEdit(cfg, selected); err != nil {
				return err
			}
		}
	}
}

func buildConfigMenuItems(cfg *config.Config) []ConfigMenuItem {
	items := make([]ConfigMenuItem, 0, len(config.Keys))
	for _, k := range config.Keys {
		value, err := config.Get(cfg, k)
		if err != nil {
			continue
		}
		if k == "default_model" && value == "" {
			value = "default"
		}

		label, desc := k, ""
		if l, ok := menuLabels[k]; ok {
			label, desc = l[0], l[1]
		}
		items = append(items, ConfigMenuItem{
			Key:         k,
			Label:       label,
			Description: desc,
			Value:       value,
		})
	}
	return items
}

// applyEdit sets key on cfg only when the resulting configuration is valid.
func applyEdit(cfg *config.Config, key, value string) error {
	next := *cfg
	next.DefaultSources = slices.Clone(cfg.DefaultSources)
	if err := config.Set(&next, key, value); err != nil {
		return err
	}
	*cfg = next
	return nil
}

func handleConfigEdit(cfg *config.Config, key string) error {
	current, err := config.Get(cfg, key)
	if err != nil {
		return err
	}

	var value string
	var ok bool
	switch key {
	case "default_mode":
		value, ok, err = selectValue("Select Mode", "Choose the default search mode", modeOptions(), current)
	case "default_model":
		value, ok, err = selectValue("Select Model", "Models available in "+string(cfg.DefaultMode)+" mode", modelOptions(cfg.DefaultMode), current)
	case "default_language":
		value, ok, err = editLanguage(current)
	case "default_sources":
		value, ok, err = editSources(cfg.DefaultSources)
	case "streaming", "incognito":
		value, ok, err = editBool(menuLabels[key][1]+"?", current == "true")
	case "log_level":
		value, ok, err = selectValue("Log Level", "", stringOptions("debug", "info", "warn", "error"), current)
	case "log_format":
		value, ok, err = selectValue("Log Format", "", stringOptions("console", "json"), current)
	default:
		value, ok, err = editString(menuLabels[key][0], current, func(s string) error {
			return applyEdit(&config.Config{
				DefaultMode:    cfg.DefaultMode,
				DefaultModel:   cfg.DefaultModel,
				DefaultSources: cfg.DefaultSources,
			}, key, s)
		})
	}
	if err != nil || !ok {
		return err
	}

	if err := applyEdit(cfg, key, value); err != nil {
		fmt.Println(ErrorStyle.Render("Error: " + err.Error()))
	}
	return nil
}

// runForm runs a single-field form. ok is false when the user backed out.
func runForm(field huh.Field) (ok bool, err error) {
	form := huh.NewForm(huh.NewGroup(field)).WithKeyMap(customKeyMap())
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func selectValue(title, description string, options []huh.Option[string], current string) (string, bool, error) {
	selected := current
	field := huh.NewSelect[string]().
		Title(title).
		Description(strings.TrimSpace(description + " (Esc to go back)")).
		Options(options...).
		Value(&selected)
	ok, err := runForm(field)
	return selected, ok, err
}

func stringOptions(values ...string) []huh.Option[string] {
	return huh.NewOptions(values...)
}

func modeOptions() []huh.Option[string] {
	options := make([]huh.Option[string], len(models.AvailableModes))
	for i, m := range models.AvailableModes {
		label := fmt.Sprintf("%-15s %s", string(m), DimStyle.Render(getModeDescription(m)))
		options[i] = huh.NewOption(label, string(m))
	}
	return options
}

// modelOptions lists the models legal for mode, default first.
func modelOptions(mode models.Mode) []huh.Option[string] {
	options := []huh.Option[string]{huh.NewOption("default", string(models.ModelDefault))}
	for _, m := range models.AvailableModels {
		if slices.Contains(models.ModesForModel(m), mode) {
			options = append(options, huh.NewOption(string(m), string(m)))
		}
	}
	return options
}

func getModeDescription(m models.Mode) string {
	switch m {
	case models.ModeAuto:
		return "Quick answers"
	case models.ModePro:
		return "Balanced quality, choice of model"
	case models.ModeReasoning:
		return "Deep analysis with reasoning models"
	case models.ModeDeepResearch:
		return "Comprehensive research"
	default:
		return ""
	}
}

var commonLanguages = []struct {
	code string
	name string
}{
	{"en-US", "English (US)"},
	{"en-GB", "English (UK)"},
	{"pt-BR", "Portuguese (Brazil)"},
	{"pt-PT", "Portuguese (Portugal)"},
	{"es-ES", "Spanish (Spain)"},
	{"es-MX", "Spanish (Mexico)"},
	{"fr-FR", "French"},
	{"de-DE", "German"},
	{"it-IT", "Italian"},
	{"ja-JP", "Japanese"},
	{"ko-KR", "Korean"},
	{"zh-CN", "Chinese (Simplified)"},
	{"zh-TW", "Chinese (Traditional)"},
}

func editLanguage(current string) (string, bool, error) {
	options := make([]huh.Option[string], 0, len(commonLanguages)+1)
	for _, lang := range commonLanguages {
		options = append(options, huh.NewOption(fmt.Sprintf("%-7s %s", lang.code, lang.name), lang.code))
	}
	options = append(options, huh.NewOption("Other (enter custom)", "custom"))

	selected, ok, err := selectValue("Select Language", "Choose the response language", options, current)
	if err != nil || !ok || selected != "custom" {
		return selected, ok, err
	}

	return editString("Custom Language", "", func(s string) error {
		return config.Validate(&config.Config{DefaultLanguage: s})
	})
}

func editSources(current []models.Source) (string, bool, error) {
	selected := make([]string, len(current))
	for i, s := range current {
		selected[i] = string(s)
	}

	options := make([]huh.Option[string], len(models.AvailableSources))
	for i, s := range models.AvailableSources {
		options[i] = huh.NewOption(string(s), string(s))
	}

	field := huh.NewMultiSelect[string]().
		Title("Select Sources").
		Description("Choose search sources, at least one (Esc to go back)").
		Options(options...).
		Value(&selected).
		Validate(func(s []string) error {
			if len(s) == 0 {
				return fmt.Errorf("select at least one source")
			}
			return nil
		})
	ok, err := runForm(field)
	return strings.Join(selected, ","), ok, err
}

func editBool(title string, current bool) (string, bool, error) {
	value := current
	field := huh.NewSelect[bool]().
		Title(title + " (Esc to go back)").
		Options(huh.NewOption("Yes", true), huh.NewOption("No", false)).
		Value(&value)
	ok, err := runForm(field)
	return strconv.FormatBool(value), ok, err
}

func editString(title, current string, validate func(string) error) (string, bool, error) {
	value := current
	field := huh.NewInput().
		Title(title + " (Esc to go back)").
		Value(&value).
		Validate(validate)
	ok, err := runForm(field)
	return strings.TrimSpace(value), ok, err
}

func handleReset(cfg *config.Config, defaults *config.Config) error {
	var confirm bool
	field := huh.NewConfirm().
		Title("Reset Configuration (Esc to go back)").
		Description("Are you sure you want to reset all settings to defaults?").
		Affirmative("Yes, reset").
		Negative("Cancel").
		Value(&confirm)

	ok, err := runForm(field)
	if err != nil || !ok || !confirm {
		return err
	}

	*cfg = *defaults
	fmt.Println(WarningStyle.Render("Configuration reset to defaults"))
	return nil
}
