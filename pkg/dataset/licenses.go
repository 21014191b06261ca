package dataset

// Common licenses that public medical-imaging datasets are released under.
var (
	CC0_10 = License{Name: "CC0 1.0", URL: "https://creativecommons.org/publicdomain/zero/1.0/"}

	CC_BY_30 = License{Name: "CC BY 3.0", URL: "https://creativecommons.org/licenses/by/3.0/"}
	CC_BY_40 = License{Name: "CC BY 4.0", URL: "https://creativecommons.org/licenses/by/4.0/"}

	CC_BYNC_40   = License{Name: "CC BY-NC 4.0", URL: "https://creativecommons.org/licenses/by-nc/4.0/"}
	CC_BYND_40   = License{Name: "CC BY-ND 4.0", URL: "https://creativecommons.org/licenses/by-nd/4.0/"}
	CC_BYNCND_40 = License{Name: "CC BY-NC-ND 4.0", URL: "https://creativecommons.org/licenses/by-nc-nd/4.0/"}
	CC_BYSA_40   = License{Name: "CC BY-SA 4.0", URL: "https://creativecommons.org/licenses/by-sa/4.0/"}
	CC_BYNCSA_40 = License{Name: "CC BY-NC-SA 4.0", URL: "https://creativecommons.org/licenses/by-nc-sa/4.0/"}

	PhysioNet_RHD_150 = License{
		Name: "PhysioNet Restricted Health Data License 1.5.0",
		URL:  "https://physionet.org/content/ct-ich/view-license/1.3.1/",
	}
)
