package theme

func init() {
	MustRegister(&Theme{
		Name: DefaultName,
		Path: "themes/pesterchum",
		Styles: Styles{
			Background: "#ffffff",
			Text:       "#000000",
			Border:     "#c59400",
			Title:      "#e99b00",
			InputBg:    "#fff2b3",
			InputText:  "#000000",
			LogInfo:    "#646464",
			LogWarn:    "#c59400",
			LogError:   "#b00000",
			Spoiler:    "#000000",
		},
	})

	MustRegister(&Theme{
		Name: "Pesterchum 2.5 Dark",
		Path: "themes/pesterchum",
		Styles: Styles{
			Background: "#000000",
			Text:       "#dcdcdc",
			Border:     "#c59400",
			Title:      "#ffcc00",
			InputBg:    "#2b2200",
			InputText:  "#ffcc00",
			LogInfo:    "#808080",
			LogWarn:    "#ffcc00",
			LogError:   "#ff4040",
			Spoiler:    "#dcdcdc",
		},
	})

	MustRegister(&Theme{
		Name: "Trollian",
		Path: "themes/trollian",
		Styles: Styles{
			Background: "#140000",
			Text:       "#e6e6e6",
			Border:     "#a10000",
			Title:      "#ff3b3b",
			InputBg:    "#2a0000",
			InputText:  "#ffffff",
			LogInfo:    "#8c8c8c",
			LogWarn:    "#ff9900",
			LogError:   "#ff3b3b",
			Spoiler:    "#e6e6e6",
		},
	})
}
